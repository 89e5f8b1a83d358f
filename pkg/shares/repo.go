package shares

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClassStore persists share classes and balances behind the in-memory ledger.
type ClassStore interface {
	SaveClass(ctx context.Context, class ShareClass) error
	SaveBalance(ctx context.Context, classID int64, holder string, balance uint64) error
	LoadClasses(ctx context.Context) ([]ShareClass, error)
	LoadBalances(ctx context.Context) (map[int64]map[string]uint64, error)
}

type postgresClassStore struct {
	pool *pgxpool.Pool
}

func NewPostgresClassStore(pool *pgxpool.Pool) ClassStore {
	return &postgresClassStore{pool: pool}
}

func (r *postgresClassStore) SaveClass(ctx context.Context, class ShareClass) error {
	query := `INSERT INTO share_classes (id, asset_id, total_shares, share_value, redeemable, description, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)
              ON CONFLICT (id) DO UPDATE SET redeemable = $5, description = $6`
	_, err := r.pool.Exec(ctx, query, class.ID, class.AssetID, class.TotalShares, class.ShareValue, class.Redeemable, class.Description, class.CreatedAt)
	return err
}

func (r *postgresClassStore) SaveBalance(ctx context.Context, classID int64, holder string, balance uint64) error {
	query := `INSERT INTO share_balances (class_id, holder_uuid, balance, updated_at)
              VALUES ($1, $2, $3, NOW())
              ON CONFLICT (class_id, holder_uuid) DO UPDATE SET balance = $3, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query, classID, holder, balance)
	return err
}

func (r *postgresClassStore) LoadClasses(ctx context.Context) ([]ShareClass, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, asset_id, total_shares, share_value, redeemable, description, created_at FROM share_classes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ShareClass, 0)
	for rows.Next() {
		var c ShareClass
		if err := rows.Scan(&c.ID, &c.AssetID, &c.TotalShares, &c.ShareValue, &c.Redeemable, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresClassStore) LoadBalances(ctx context.Context) (map[int64]map[string]uint64, error) {
	rows, err := r.pool.Query(ctx, "SELECT class_id, holder_uuid, balance FROM share_balances")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]map[string]uint64)
	for rows.Next() {
		var classID int64
		var holder string
		var balance uint64
		if err := rows.Scan(&classID, &holder, &balance); err != nil {
			return nil, err
		}
		if out[classID] == nil {
			out[classID] = make(map[string]uint64)
		}
		out[classID][holder] = balance
	}
	return out, rows.Err()
}
