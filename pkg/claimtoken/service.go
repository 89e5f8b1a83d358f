package claimtoken

import (
	"context"
	"errors"
	"log"
	"sync"

	"primevault/pkg/events"
	"primevault/pkg/numeric"
)

var (
	ErrNotOperator            = errors.New("caller is not a registered ledger operator")
	ErrZeroAmount             = errors.New("amount must be positive")
	ErrInsufficientCollateral = errors.New("collateral value below mint amount")
	ErrInsufficientBalance    = errors.New("insufficient claim-token balance")
	ErrInsufficientBacking    = errors.New("burn exceeds recorded asset backing")
	ErrSupplyOverflow         = errors.New("total supply overflow")
)

// Ledger is the fungible claim-token ledger. Mint, burn and collateral
// updates are operator-gated; the vault core is the only operator in
// production wiring.
type Ledger interface {
	Mint(operator, to string, amount uint64, assetID int64, collateralValue uint64) error
	BurnFrom(operator, holder string, amount uint64, assetID int64) error
	Transfer(from, to string, amount uint64) error
	UpdateCollateralValue(operator string, newValue uint64) error

	BalanceOf(holder string) uint64
	HolderAssets(holder string) []int64
	AssetBacking(assetID int64) uint64
	Stats() Stats
}

type ledger struct {
	mu sync.Mutex

	operators    map[string]bool
	balances     map[string]uint64
	holderAssets map[string][]int64
	backing      map[int64]uint64

	totalSupply     uint64
	totalMinted     uint64
	totalBurned     uint64
	totalCollateral uint64

	repo BalanceStore // optional write-behind persistence
	pub  events.Publisher
}

func NewLedger(operators []string, repo BalanceStore, pub events.Publisher) Ledger {
	ops := make(map[string]bool, len(operators))
	for _, op := range operators {
		ops[op] = true
	}
	return &ledger{
		operators:    ops,
		balances:     make(map[string]uint64),
		holderAssets: make(map[string][]int64),
		backing:      make(map[int64]uint64),
		repo:         repo,
		pub:          pub,
	}
}

// NewLedgerFromStore builds a Ledger preloaded with persisted balances and
// backings. Lifetime mint/burn counters restart at the restored supply; the
// vault pushes the collateral figure after its own reload.
func NewLedgerFromStore(ctx context.Context, operators []string, repo BalanceStore, pub events.Publisher) (Ledger, error) {
	l := NewLedger(operators, repo, pub).(*ledger)
	if repo == nil {
		return l, nil
	}

	holders, err := repo.LoadHolders(ctx)
	if err != nil {
		return nil, err
	}
	backings, err := repo.LoadBackings(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range holders {
		if rec.Balance == 0 && len(rec.AssetIDs) == 0 {
			continue
		}
		l.balances[rec.Holder] = rec.Balance
		l.holderAssets[rec.Holder] = rec.AssetIDs
		l.totalSupply += rec.Balance
	}
	for assetID, amount := range backings {
		if amount > 0 {
			l.backing[assetID] = amount
		}
	}
	l.totalMinted = l.totalSupply
	return l, nil
}

func (l *ledger) Mint(operator, to string, amount uint64, assetID int64, collateralValue uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[operator] {
		return ErrNotOperator
	}
	if collateralValue < amount {
		return ErrInsufficientCollateral
	}
	if l.totalSupply+amount < l.totalSupply {
		return ErrSupplyOverflow
	}

	l.balances[to] += amount
	l.totalSupply += amount
	l.totalMinted += amount
	l.backing[assetID] += amount
	l.totalCollateral += collateralValue
	l.holderAssets[to] = append(l.holderAssets[to], assetID)

	l.persistHolder(to)
	l.persistBacking(assetID)
	l.pub.Publish(events.KindClaimsMinted, assetID, map[string]any{
		"to": to, "amount": amount, "collateral_value": collateralValue,
	})
	return nil
}

func (l *ledger) BurnFrom(operator, holder string, amount uint64, assetID int64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[operator] {
		return ErrNotOperator
	}
	if l.backing[assetID] < amount {
		return ErrInsufficientBacking
	}
	if l.balances[holder] < amount {
		return ErrInsufficientBalance
	}

	l.balances[holder] -= amount
	l.totalSupply -= amount
	l.totalBurned += amount
	l.backing[assetID] -= amount

	l.persistHolder(holder)
	l.persistBacking(assetID)
	l.pub.Publish(events.KindClaimsBurned, assetID, map[string]any{
		"holder": holder, "amount": amount,
	})
	return nil
}

func (l *ledger) Transfer(from, to string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}

	l.balances[from] -= amount
	l.balances[to] += amount

	l.persistHolder(from)
	l.persistHolder(to)
	l.pub.Publish(events.KindClaimsTransferred, 0, map[string]any{
		"from": from, "to": to, "amount": amount,
	})
	return nil
}

// UpdateCollateralValue overwrites the aggregate collateral figure, used by
// the vault after reappraisal.
func (l *ledger) UpdateCollateralValue(operator string, newValue uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[operator] {
		return ErrNotOperator
	}

	l.totalCollateral = newValue
	l.pub.Publish(events.KindCollateralUpdated, 0, map[string]any{"total_collateral_value": newValue})
	return nil
}

func (l *ledger) BalanceOf(holder string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder]
}

func (l *ledger) HolderAssets(holder string) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int64, len(l.holderAssets[holder]))
	copy(out, l.holderAssets[holder])
	return out
}

func (l *ledger) AssetBacking(assetID int64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backing[assetID]
}

func (l *ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		TotalSupply:               l.totalSupply,
		TotalMinted:               l.totalMinted,
		TotalBurned:               l.totalBurned,
		TotalCollateralValue:      l.totalCollateral,
		CollateralizationRatioBps: numeric.RatioBps(l.totalCollateral, l.totalSupply),
		IntrinsicValuePerToken:    numeric.ScaledQuotient(l.totalCollateral, l.totalSupply, numeric.E18).String(),
	}
}

// persistHolder writes a holder's balance behind the in-memory commit.
// Persistence failures are logged; the ledger state is authoritative.
func (l *ledger) persistHolder(holder string) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveHolder(context.Background(), holder, l.balances[holder], l.holderAssets[holder]); err != nil {
		log.Printf("claim balance persist failed for %s: %v", holder, err)
	}
}

func (l *ledger) persistBacking(assetID int64) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveBacking(context.Background(), assetID, l.backing[assetID]); err != nil {
		log.Printf("claim backing persist failed for asset %d: %v", assetID, err)
	}
}
