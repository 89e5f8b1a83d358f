package claimtoken

// Stats is the public view of the fungible claim-token ledger.
type Stats struct {
	TotalSupply          uint64 `json:"total_supply"`
	TotalMinted          uint64 `json:"total_minted"`
	TotalBurned          uint64 `json:"total_burned"`
	TotalCollateralValue uint64 `json:"total_collateral_value"`
	// Basis points; 10000 means exactly fully collateralized.
	CollateralizationRatioBps uint64 `json:"collateralization_ratio_bps"`
	// 1e18-scaled USD value backing a single token, as a decimal string.
	IntrinsicValuePerToken string `json:"intrinsic_value_per_token"`
}

// Holding is one holder's balance plus the asset IDs their claims trace to.
type Holding struct {
	Holder   string  `json:"holder"`
	Balance  uint64  `json:"balance"`
	AssetIDs []int64 `json:"asset_ids"`
}
