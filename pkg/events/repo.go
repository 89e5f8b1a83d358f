package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal persists the event stream for restart recovery and indexer replay.
type Journal interface {
	Append(ctx context.Context, ev Event) error
	List(ctx context.Context, kind string, entityID int64, limit, offset int) ([]Event, int64, error)
}

type postgresJournal struct {
	pool *pgxpool.Pool
}

func NewPostgresJournal(pool *pgxpool.Pool) Journal {
	return &postgresJournal{pool: pool}
}

func (r *postgresJournal) Append(ctx context.Context, ev Event) error {
	if r.pool == nil {
		return errors.New("db pool is nil")
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = r.pool.Exec(ctxTimeout,
		`INSERT INTO vault_events (id, kind, entity_id, payload, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, string(ev.Kind), ev.EntityID, payload, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *postgresJournal) List(ctx context.Context, kind string, entityID int64, limit, offset int) ([]Event, int64, error) {
	query := `SELECT id, kind, entity_id, payload, occurred_at FROM vault_events WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM vault_events WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if kind != "" {
		clause := fmt.Sprintf(" AND kind = $%d", argPos)
		query += clause
		countQuery += clause
		args = append(args, kind)
		argPos++
	}
	if entityID > 0 {
		clause := fmt.Sprintf(" AND entity_id = $%d", argPos)
		query += clause
		countQuery += clause
		args = append(args, entityID)
		argPos++
	}

	countArgs := make([]interface{}, len(args))
	copy(countArgs, args)

	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var kindStr string
		var payload []byte
		if err := rows.Scan(&ev.ID, &kindStr, &ev.EntityID, &payload, &ev.OccurredAt); err != nil {
			return nil, 0, err
		}
		ev.Kind = Kind(kindStr)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, 0, fmt.Errorf("unmarshal event payload: %w", err)
			}
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return list, total, nil
}
