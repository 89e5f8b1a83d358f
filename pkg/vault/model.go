package vault

import "time"

// AssetStatus is the lifecycle state of a registered asset.
type AssetStatus string

const (
	StatusPendingVerification AssetStatus = "pending_verification"
	StatusVerified            AssetStatus = "verified"
	StatusTokenized           AssetStatus = "tokenized"
	StatusFractionalized      AssetStatus = "fractionalized"
	StatusRedeemed            AssetStatus = "redeemed"
	StatusLiquidating         AssetStatus = "liquidating"
	StatusDefaulted           AssetStatus = "defaulted"
)

// Asset categories. The category doubles as the oracle's asset-type key.
const (
	CategoryPreciousMetals = "precious-metals"
	CategoryRealEstate     = "real-estate"
	CategoryVehicles       = "vehicles"
	CategoryCommodities    = "commodities"
	CategoryFinancial      = "financial"
	CategoryCollectibles   = "collectibles"
	CategoryOther          = "other"
)

func IsValidCategory(category string) bool {
	switch category {
	case CategoryPreciousMetals, CategoryRealEstate, CategoryVehicles,
		CategoryCommodities, CategoryFinancial, CategoryCollectibles, CategoryOther:
		return true
	default:
		return false
	}
}

// MinCollateralRatioBps is 1:1 backing; ratios below it under-collateralize.
const MinCollateralRatioBps = 10000

// DefaultThresholdBps: a reappraisal below 80% of the prior value defaults
// the asset.
const DefaultThresholdBps = 8000

// ReappraisalInterval is the minimum age of an appraisal before it can be
// refreshed.
const ReappraisalInterval = 365 * 24 * time.Hour

// LiquidationFeeBps is charged on the sale price during liquidation.
const LiquidationFeeBps = 500

// Asset is one registered real-world item and its full lifecycle record.
type Asset struct {
	ID                int64       `json:"id"`
	Category          string      `json:"category"`
	OwnerUUID         string      `json:"owner_uuid"`
	Description       string      `json:"description"`
	SerialHash        string      `json:"serial_hash"`
	AppraisedValue    uint64      `json:"appraised_value"`
	LastAppraisalAt   time.Time   `json:"last_appraisal_at"`
	AppraiserID       int64       `json:"appraiser_id,omitempty"`
	ClaimsIssued      uint64      `json:"claims_issued"`
	CollateralRatio   uint64      `json:"collateral_ratio_bps"`
	Locked            bool        `json:"locked"`
	Fractionalized    bool        `json:"fractionalized"`
	ShareClassID      int64       `json:"share_class_id,omitempty"`
	TotalShares       uint64      `json:"total_shares,omitempty"`
	CustodianID       int64       `json:"custodian_id"`
	InsuranceProvider string      `json:"insurance_provider,omitempty"`
	InsuranceValue    uint64      `json:"insurance_value,omitempty"`
	LegalDocHash      string      `json:"legal_doc_hash,omitempty"`
	Jurisdiction      string      `json:"jurisdiction,omitempty"`
	TitleVerified     bool        `json:"title_verified"`
	Status            AssetStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Custodian is an approved physical holder of assets. Revocation flips the
// approval flag; custodian records are never deleted.
type Custodian struct {
	ID                int64     `json:"id"`
	AccountUUID       string    `json:"account_uuid"`
	Name              string    `json:"name"`
	Approved          bool      `json:"approved"`
	AssetCount        int64     `json:"asset_count"`
	TotalValue        uint64    `json:"total_value"`
	CertificationHash string    `json:"certification_hash"`
	ReputationScore   int       `json:"reputation_score"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Appraiser is a certified valuer.
type Appraiser struct {
	ID                  int64     `json:"id"`
	AccountUUID         string    `json:"account_uuid"`
	Certified           bool      `json:"certified"`
	AppraisalCount      int64     `json:"appraisal_count"`
	CertificationExpiry time.Time `json:"certification_expiry"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// FeeRates in basis points, bounded by UpdateFeeRates.
type FeeRates struct {
	TokenizationBps uint64 `json:"tokenization_bps"`
	CustodyBps      uint64 `json:"custody_bps"`
	TransactionBps  uint64 `json:"transaction_bps"`
	RedemptionBps   uint64 `json:"redemption_bps"`
}

// Fee rate upper bounds.
const (
	MaxTokenizationFeeBps = 500
	MaxCustodyFeeBps      = 200
	MaxTransactionFeeBps  = 100
	MaxRedemptionFeeBps   = 500
)

// Stats is the vault-wide aggregate view.
type Stats struct {
	TotalValueLocked  uint64 `json:"total_value_locked"`
	TotalClaimsIssued uint64 `json:"total_claims_issued"`
	FeesCollected     uint64 `json:"fees_collected"`
	AssetCount        int64  `json:"asset_count"`
	Paused            bool   `json:"paused"`
}

// AssetList is the paginated asset listing payload.
type AssetList struct {
	Items []Asset `json:"items"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// AssetFilters narrows asset listings.
type AssetFilters struct {
	OwnerUUID *string
	Category  *string
	Status    *AssetStatus
}
