package oracle

import (
	"context"
	"time"
)

// MaxPriceAge is the staleness window for both manual prices and feed rounds.
const MaxPriceAge = 24 * time.Hour

// MaxDeviationBps bounds how far a proposed price may sit from the reference.
const MaxDeviationBps = 2000

// RoundData is one answer from an external price feed.
type RoundData struct {
	RoundID         uint64
	AnsweredInRound uint64
	Price           uint64
	UpdatedAt       time.Time
}

// PriceFeed is a registered external price source for one asset type.
type PriceFeed interface {
	LatestRound(ctx context.Context) (RoundData, error)
	Description() string
}

// Quote is a priced asset type as served to callers.
type Quote struct {
	AssetType string    `json:"asset_type"`
	Price     uint64    `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"` // "feed" or "manual"
}

type manualPrice struct {
	price     uint64
	updatedAt time.Time
}
