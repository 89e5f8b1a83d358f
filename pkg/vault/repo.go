package vault

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// State is the single-row vault bookkeeping that is not derivable from the
// entity tables: the fee accumulator, current fee rates and the pause flag.
type State struct {
	FeesCollected uint64
	FeeRates      FeeRates
	Paused        bool
}

// Repository is the write-behind registry persistence for vault records.
// The in-memory state is authoritative; save failures are logged by the
// service and never roll back a committed transition.
type Repository interface {
	SaveAsset(ctx context.Context, asset Asset) error
	SaveCustodian(ctx context.Context, custodian Custodian) error
	SaveAppraiser(ctx context.Context, appraiser Appraiser) error
	SaveState(ctx context.Context, state State) error
	LoadAssets(ctx context.Context) ([]Asset, error)
	LoadCustodians(ctx context.Context) ([]Custodian, error)
	LoadAppraisers(ctx context.Context) ([]Appraiser, error)
	LoadState(ctx context.Context) (State, bool, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) SaveAsset(ctx context.Context, a Asset) error {
	query := `
		INSERT INTO assets (
			id, category, owner_uuid, description, serial_hash,
			appraised_value, last_appraisal_at, appraiser_id,
			claims_issued, collateral_ratio_bps, locked,
			fractionalized, share_class_id, total_shares,
			custodian_id, insurance_provider, insurance_value,
			legal_doc_hash, jurisdiction, title_verified,
			status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (id) DO UPDATE SET
			appraised_value = EXCLUDED.appraised_value,
			last_appraisal_at = EXCLUDED.last_appraisal_at,
			appraiser_id = EXCLUDED.appraiser_id,
			claims_issued = EXCLUDED.claims_issued,
			collateral_ratio_bps = EXCLUDED.collateral_ratio_bps,
			locked = EXCLUDED.locked,
			fractionalized = EXCLUDED.fractionalized,
			share_class_id = EXCLUDED.share_class_id,
			total_shares = EXCLUDED.total_shares,
			owner_uuid = EXCLUDED.owner_uuid,
			legal_doc_hash = EXCLUDED.legal_doc_hash,
			jurisdiction = EXCLUDED.jurisdiction,
			title_verified = EXCLUDED.title_verified,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		a.ID, a.Category, a.OwnerUUID, a.Description, a.SerialHash,
		a.AppraisedValue, a.LastAppraisalAt, a.AppraiserID,
		a.ClaimsIssued, a.CollateralRatio, a.Locked,
		a.Fractionalized, a.ShareClassID, a.TotalShares,
		a.CustodianID, a.InsuranceProvider, a.InsuranceValue,
		a.LegalDocHash, a.Jurisdiction, a.TitleVerified,
		a.Status, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *postgresRepository) SaveCustodian(ctx context.Context, c Custodian) error {
	query := `
		INSERT INTO custodians (
			id, account_uuid, name, approved, asset_count, total_value,
			certification_hash, reputation_score, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			approved = EXCLUDED.approved,
			asset_count = EXCLUDED.asset_count,
			total_value = EXCLUDED.total_value,
			certification_hash = EXCLUDED.certification_hash,
			reputation_score = EXCLUDED.reputation_score,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.AccountUUID, c.Name, c.Approved, c.AssetCount, c.TotalValue,
		c.CertificationHash, c.ReputationScore, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *postgresRepository) SaveAppraiser(ctx context.Context, a Appraiser) error {
	query := `
		INSERT INTO appraisers (
			id, account_uuid, certified, appraisal_count,
			certification_expiry, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			certified = EXCLUDED.certified,
			appraisal_count = EXCLUDED.appraisal_count,
			certification_expiry = EXCLUDED.certification_expiry,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		a.ID, a.AccountUUID, a.Certified, a.AppraisalCount,
		a.CertificationExpiry, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *postgresRepository) SaveState(ctx context.Context, state State) error {
	query := `
		INSERT INTO vault_state (
			id, fees_collected, tokenization_bps, custody_bps,
			transaction_bps, redemption_bps, paused, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			fees_collected = EXCLUDED.fees_collected,
			tokenization_bps = EXCLUDED.tokenization_bps,
			custody_bps = EXCLUDED.custody_bps,
			transaction_bps = EXCLUDED.transaction_bps,
			redemption_bps = EXCLUDED.redemption_bps,
			paused = EXCLUDED.paused,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		state.FeesCollected, state.FeeRates.TokenizationBps, state.FeeRates.CustodyBps,
		state.FeeRates.TransactionBps, state.FeeRates.RedemptionBps, state.Paused,
	)
	return err
}

func (r *postgresRepository) LoadState(ctx context.Context) (State, bool, error) {
	query := `
		SELECT fees_collected, tokenization_bps, custody_bps,
		       transaction_bps, redemption_bps, paused
		FROM vault_state
		WHERE id = 1
	`
	var state State
	err := r.db.QueryRow(ctx, query).Scan(
		&state.FeesCollected, &state.FeeRates.TokenizationBps, &state.FeeRates.CustodyBps,
		&state.FeeRates.TransactionBps, &state.FeeRates.RedemptionBps, &state.Paused,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (r *postgresRepository) LoadAssets(ctx context.Context) ([]Asset, error) {
	query := `
		SELECT id, category, owner_uuid, description, serial_hash,
		       appraised_value, last_appraisal_at, appraiser_id,
		       claims_issued, collateral_ratio_bps, locked,
		       fractionalized, share_class_id, total_shares,
		       custodian_id, insurance_provider, insurance_value,
		       legal_doc_hash, jurisdiction, title_verified,
		       status, created_at, updated_at
		FROM assets
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		err := rows.Scan(
			&a.ID, &a.Category, &a.OwnerUUID, &a.Description, &a.SerialHash,
			&a.AppraisedValue, &a.LastAppraisalAt, &a.AppraiserID,
			&a.ClaimsIssued, &a.CollateralRatio, &a.Locked,
			&a.Fractionalized, &a.ShareClassID, &a.TotalShares,
			&a.CustodianID, &a.InsuranceProvider, &a.InsuranceValue,
			&a.LegalDocHash, &a.Jurisdiction, &a.TitleVerified,
			&a.Status, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *postgresRepository) LoadCustodians(ctx context.Context) ([]Custodian, error) {
	query := `
		SELECT id, account_uuid, name, approved, asset_count, total_value,
		       certification_hash, reputation_score, created_at, updated_at
		FROM custodians
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var custodians []Custodian
	for rows.Next() {
		var c Custodian
		err := rows.Scan(
			&c.ID, &c.AccountUUID, &c.Name, &c.Approved, &c.AssetCount, &c.TotalValue,
			&c.CertificationHash, &c.ReputationScore, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		custodians = append(custodians, c)
	}
	return custodians, rows.Err()
}

func (r *postgresRepository) LoadAppraisers(ctx context.Context) ([]Appraiser, error) {
	query := `
		SELECT id, account_uuid, certified, appraisal_count,
		       certification_expiry, created_at, updated_at
		FROM appraisers
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appraisers []Appraiser
	for rows.Next() {
		var a Appraiser
		err := rows.Scan(
			&a.ID, &a.AccountUUID, &a.Certified, &a.AppraisalCount,
			&a.CertificationExpiry, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		appraisers = append(appraisers, a)
	}
	return appraisers, rows.Err()
}
