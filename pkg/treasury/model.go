package treasury

import "time"

// SecurityStatus is the lifecycle state of a fixed-income instrument.
type SecurityStatus string

const (
	StatusOffered  SecurityStatus = "offered"
	StatusActive   SecurityStatus = "active"
	StatusMatured  SecurityStatus = "matured"
	StatusRedeemed SecurityStatus = "redeemed"
)

// Valid coupon frequencies, payments per year.
const (
	FrequencyAnnual     = 1
	FrequencySemiAnnual = 2
	FrequencyQuarterly  = 4
	FrequencyMonthly    = 12
)

func isValidFrequency(f int) bool {
	switch f {
	case FrequencyAnnual, FrequencySemiAnnual, FrequencyQuarterly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// Security is one registered fixed-income instrument.
type Security struct {
	ID             int64          `json:"id"`
	CUSIP          string         `json:"cusip"`
	Issuer         string         `json:"issuer"`
	FaceValue      uint64         `json:"face_value"`
	CouponRateBps  uint64         `json:"coupon_rate_bps"`
	IssueDate      time.Time      `json:"issue_date"`
	MaturityDate   time.Time      `json:"maturity_date"`
	CouponsPerYear int            `json:"coupons_per_year"`
	TotalUnits     uint64         `json:"total_units"`
	SoldUnits      uint64         `json:"sold_units"`
	RedeemedUnits  uint64         `json:"redeemed_units"`
	Status         SecurityStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Investor is a compliance-reviewed account. Revocation flips the whitelist
// flag; the record is kept.
type Investor struct {
	AccountUUID  string    `json:"account_uuid"`
	KYCPassed    bool      `json:"kyc_passed"`
	Accredited   bool      `json:"accredited"`
	Jurisdiction string    `json:"jurisdiction"`
	Whitelisted  bool      `json:"whitelisted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Holding is an investor's position in one security.
type Holding struct {
	AccountUUID string    `json:"account_uuid"`
	SecurityID  int64     `json:"security_id"`
	Units       uint64    `json:"units"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

// CouponPayment marks one scheduled coupon date as paid.
type CouponPayment struct {
	SecurityID  int64     `json:"security_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	PaidAt      time.Time `json:"paid_at"`
}
