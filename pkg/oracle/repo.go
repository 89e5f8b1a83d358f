package oracle

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceRepository persists manual prices across restarts.
type PriceRepository interface {
	UpsertManualPrice(ctx context.Context, assetType string, price uint64, updatedAt time.Time) error
	ListManualPrices(ctx context.Context) ([]Quote, error)
}

type postgresPriceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPriceRepository(pool *pgxpool.Pool) PriceRepository {
	return &postgresPriceRepository{pool: pool}
}

func (r *postgresPriceRepository) UpsertManualPrice(ctx context.Context, assetType string, price uint64, updatedAt time.Time) error {
	query := `INSERT INTO manual_prices (asset_type, price, updated_at)
              VALUES ($1, $2, $3)
              ON CONFLICT (asset_type) DO UPDATE SET price = $2, updated_at = $3`
	_, err := r.pool.Exec(ctx, query, assetType, price, updatedAt)
	return err
}

func (r *postgresPriceRepository) ListManualPrices(ctx context.Context) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, "SELECT asset_type, price, updated_at FROM manual_prices")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make([]Quote, 0)
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.AssetType, &q.Price, &q.UpdatedAt); err != nil {
			return nil, err
		}
		q.Source = "manual"
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
