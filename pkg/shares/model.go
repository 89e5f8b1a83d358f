package shares

import "time"

// MaxSharesPerClass caps fractionalization granularity.
const MaxSharesPerClass = 10000

// ShareClass is one token class representing divided ownership of a single
// tokenized asset.
type ShareClass struct {
	ID          int64  `json:"id"`
	AssetID     int64  `json:"asset_id"`
	TotalShares uint64 `json:"total_shares"`
	ShareValue  uint64 `json:"share_value"`
	// Reserved flag: settable but not yet consumed by any redemption path.
	Redeemable  bool      `json:"redeemable"`
	Description string    `json:"description"`
	Minted      uint64    `json:"minted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Position is one holder's balance in one share class.
type Position struct {
	ClassID int64  `json:"class_id"`
	Holder  string `json:"holder"`
	Balance uint64 `json:"balance"`
}
