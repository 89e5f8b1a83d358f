package claimtoken

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HolderRecord is one holder's persisted balance plus the assets whose
// tokenization credited it.
type HolderRecord struct {
	Holder   string
	Balance  uint64
	AssetIDs []int64
}

// BalanceStore persists ledger balances and asset backings for restart
// recovery and external queries.
type BalanceStore interface {
	SaveHolder(ctx context.Context, holder string, balance uint64, assetIDs []int64) error
	SaveBacking(ctx context.Context, assetID int64, amount uint64) error
	LoadHolders(ctx context.Context) ([]HolderRecord, error)
	LoadBackings(ctx context.Context) (map[int64]uint64, error)
}

type postgresBalanceStore struct {
	pool *pgxpool.Pool
}

func NewPostgresBalanceStore(pool *pgxpool.Pool) BalanceStore {
	return &postgresBalanceStore{pool: pool}
}

func (r *postgresBalanceStore) SaveHolder(ctx context.Context, holder string, balance uint64, assetIDs []int64) error {
	query := `INSERT INTO claim_balances (holder_uuid, balance, asset_ids, updated_at)
              VALUES ($1, $2, $3, NOW())
              ON CONFLICT (holder_uuid) DO UPDATE SET balance = $2, asset_ids = $3, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query, holder, balance, assetIDs)
	return err
}

func (r *postgresBalanceStore) SaveBacking(ctx context.Context, assetID int64, amount uint64) error {
	query := `INSERT INTO claim_backings (asset_id, amount, updated_at)
              VALUES ($1, $2, NOW())
              ON CONFLICT (asset_id) DO UPDATE SET amount = $2, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query, assetID, amount)
	return err
}

func (r *postgresBalanceStore) LoadHolders(ctx context.Context) ([]HolderRecord, error) {
	rows, err := r.pool.Query(ctx, "SELECT holder_uuid, balance, asset_ids FROM claim_balances")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HolderRecord, 0)
	for rows.Next() {
		var rec HolderRecord
		if err := rows.Scan(&rec.Holder, &rec.Balance, &rec.AssetIDs); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *postgresBalanceStore) LoadBackings(ctx context.Context) (map[int64]uint64, error) {
	rows, err := r.pool.Query(ctx, "SELECT asset_id, amount FROM claim_backings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]uint64)
	for rows.Next() {
		var assetID int64
		var amount uint64
		if err := rows.Scan(&assetID, &amount); err != nil {
			return nil, err
		}
		out[assetID] = amount
	}
	return out, rows.Err()
}
