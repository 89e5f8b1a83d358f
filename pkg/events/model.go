package events

import "time"

// Kind identifies the state transition an event describes.
type Kind string

const (
	KindAssetDeposited      Kind = "asset_deposited"
	KindAssetVerified       Kind = "asset_verified"
	KindAssetTokenized      Kind = "asset_tokenized"
	KindAssetFractionalized Kind = "asset_fractionalized"
	KindAssetRedeemed       Kind = "asset_redeemed"
	KindAssetLiquidated     Kind = "asset_liquidated"
	KindAssetReappraised    Kind = "asset_reappraised"
	KindAssetDefaulted      Kind = "asset_defaulted"

	KindCustodianApproved  Kind = "custodian_approved"
	KindCustodianRevoked   Kind = "custodian_revoked"
	KindAppraiserCertified Kind = "appraiser_certified"
	KindAppraiserRevoked   Kind = "appraiser_revoked"

	KindFeesWithdrawn   Kind = "fees_withdrawn"
	KindFeeRatesUpdated Kind = "fee_rates_updated"
	KindVaultPaused     Kind = "vault_paused"
	KindVaultUnpaused   Kind = "vault_unpaused"

	KindClaimsMinted      Kind = "claims_minted"
	KindClaimsBurned      Kind = "claims_burned"
	KindClaimsTransferred Kind = "claims_transferred"
	KindCollateralUpdated Kind = "collateral_updated"

	KindShareClassCreated   Kind = "share_class_created"
	KindSharesMinted        Kind = "shares_minted"
	KindSharesBurned        Kind = "shares_burned"
	KindShareTransferred    Kind = "share_transferred"
	KindShareBalanceChanged Kind = "share_balance_changed"

	KindSecurityRegistered  Kind = "security_registered"
	KindSecurityActivated   Kind = "security_activated"
	KindInvestorWhitelisted Kind = "investor_whitelisted"
	KindInvestorRevoked     Kind = "investor_revoked"
	KindSecurityPurchased   Kind = "security_purchased"
	KindCouponPaid          Kind = "coupon_paid"
	KindSecurityMatured     Kind = "security_matured"
	KindHoldingRedeemed     Kind = "holding_redeemed"

	KindManualPriceSet   Kind = "manual_price_set"
	KindPriceFeedAdded   Kind = "price_feed_added"
	KindPriceFeedRemoved Kind = "price_feed_removed"
)

// Event is the structured notification emitted on every state transition,
// consumable by external indexers over the websocket feed or the journal.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	EntityID   int64          `json:"entity_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
