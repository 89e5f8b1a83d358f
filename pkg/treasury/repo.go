package treasury

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the write-behind persistence for treasury records; the
// in-memory state is authoritative.
type Repository interface {
	SaveSecurity(ctx context.Context, security Security) error
	SaveInvestor(ctx context.Context, investor Investor) error
	SaveHolding(ctx context.Context, holding Holding) error
	SaveCouponPayment(ctx context.Context, payment CouponPayment) error
	LoadSecurities(ctx context.Context) ([]Security, error)
	LoadInvestors(ctx context.Context) ([]Investor, error)
	LoadHoldings(ctx context.Context) ([]Holding, error)
	LoadCouponPayments(ctx context.Context) ([]CouponPayment, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) SaveSecurity(ctx context.Context, s Security) error {
	query := `
		INSERT INTO treasury_securities (
			id, cusip, issuer, face_value, coupon_rate_bps,
			issue_date, maturity_date, coupons_per_year,
			total_units, sold_units, redeemed_units,
			status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			sold_units = EXCLUDED.sold_units,
			redeemed_units = EXCLUDED.redeemed_units,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.CUSIP, s.Issuer, s.FaceValue, s.CouponRateBps,
		s.IssueDate, s.MaturityDate, s.CouponsPerYear,
		s.TotalUnits, s.SoldUnits, s.RedeemedUnits,
		s.Status, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *postgresRepository) SaveInvestor(ctx context.Context, i Investor) error {
	query := `
		INSERT INTO treasury_investors (
			account_uuid, kyc_passed, accredited, jurisdiction,
			whitelisted, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (account_uuid) DO UPDATE SET
			kyc_passed = EXCLUDED.kyc_passed,
			accredited = EXCLUDED.accredited,
			jurisdiction = EXCLUDED.jurisdiction,
			whitelisted = EXCLUDED.whitelisted,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		i.AccountUUID, i.KYCPassed, i.Accredited, i.Jurisdiction,
		i.Whitelisted, i.CreatedAt, i.UpdatedAt,
	)
	return err
}

func (r *postgresRepository) SaveHolding(ctx context.Context, h Holding) error {
	query := `
		INSERT INTO treasury_holdings (account_uuid, security_id, units, acquired_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_uuid, security_id) DO UPDATE SET
			units = EXCLUDED.units
	`
	_, err := r.db.Exec(ctx, query, h.AccountUUID, h.SecurityID, h.Units, h.AcquiredAt)
	return err
}

func (r *postgresRepository) SaveCouponPayment(ctx context.Context, p CouponPayment) error {
	query := `
		INSERT INTO coupon_payments (security_id, scheduled_at, paid_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (security_id, scheduled_at) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, p.SecurityID, p.ScheduledAt, p.PaidAt)
	return err
}

func (r *postgresRepository) LoadSecurities(ctx context.Context) ([]Security, error) {
	query := `
		SELECT id, cusip, issuer, face_value, coupon_rate_bps,
		       issue_date, maturity_date, coupons_per_year,
		       total_units, sold_units, redeemed_units,
		       status, created_at, updated_at
		FROM treasury_securities
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var securities []Security
	for rows.Next() {
		var s Security
		err := rows.Scan(
			&s.ID, &s.CUSIP, &s.Issuer, &s.FaceValue, &s.CouponRateBps,
			&s.IssueDate, &s.MaturityDate, &s.CouponsPerYear,
			&s.TotalUnits, &s.SoldUnits, &s.RedeemedUnits,
			&s.Status, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		securities = append(securities, s)
	}
	return securities, rows.Err()
}

func (r *postgresRepository) LoadInvestors(ctx context.Context) ([]Investor, error) {
	query := `
		SELECT account_uuid, kyc_passed, accredited, jurisdiction,
		       whitelisted, created_at, updated_at
		FROM treasury_investors
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var investors []Investor
	for rows.Next() {
		var i Investor
		err := rows.Scan(
			&i.AccountUUID, &i.KYCPassed, &i.Accredited, &i.Jurisdiction,
			&i.Whitelisted, &i.CreatedAt, &i.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		investors = append(investors, i)
	}
	return investors, rows.Err()
}

func (r *postgresRepository) LoadHoldings(ctx context.Context) ([]Holding, error) {
	query := `SELECT account_uuid, security_id, units, acquired_at FROM treasury_holdings`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.AccountUUID, &h.SecurityID, &h.Units, &h.AcquiredAt); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (r *postgresRepository) LoadCouponPayments(ctx context.Context) ([]CouponPayment, error) {
	query := `
		SELECT security_id, scheduled_at, paid_at
		FROM coupon_payments
		ORDER BY security_id, scheduled_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []CouponPayment
	for rows.Next() {
		var p CouponPayment
		if err := rows.Scan(&p.SecurityID, &p.ScheduledAt, &p.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
