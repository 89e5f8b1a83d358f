package claimtoken

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"primevault/pkg/events"
)

const op = "vault-core"

func newTestLedger() Ledger {
	return NewLedger([]string{op}, nil, events.NopPublisher{})
}

func TestMint_CreditsHolderAndBacking(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.Mint(op, "alice", 59400, 1, 60000))

	require.Equal(t, uint64(59400), l.BalanceOf("alice"))
	require.Equal(t, []int64{1}, l.HolderAssets("alice"))

	stats := l.Stats()
	require.Equal(t, uint64(59400), stats.TotalSupply)
	require.Equal(t, uint64(60000), stats.TotalCollateralValue)
}

func TestMint_RejectsUnknownOperator(t *testing.T) {
	l := newTestLedger()

	err := l.Mint("mallory", "alice", 100, 1, 100)
	require.ErrorIs(t, err, ErrNotOperator)
}

func TestMint_RequiresFullCollateral(t *testing.T) {
	l := newTestLedger()

	err := l.Mint(op, "alice", 1000, 1, 999)
	require.ErrorIs(t, err, ErrInsufficientCollateral)
	require.Equal(t, uint64(0), l.BalanceOf("alice"))
}

func TestBurnFrom_RequiresBackingAndBalance(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Mint(op, "alice", 1000, 1, 1000))

	err := l.BurnFrom(op, "alice", 1500, 1)
	require.ErrorIs(t, err, ErrInsufficientBacking)

	require.NoError(t, l.Transfer("alice", "bob", 600))
	err = l.BurnFrom(op, "alice", 1000, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// State unchanged by the rejected burns.
	require.Equal(t, uint64(400), l.BalanceOf("alice"))
	require.Equal(t, uint64(600), l.BalanceOf("bob"))
}

func TestConservation_SupplyEqualsMintedMinusBurned(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.Mint(op, "alice", 1000, 1, 1000))
	require.NoError(t, l.Mint(op, "bob", 500, 2, 500))
	require.NoError(t, l.Transfer("alice", "carol", 300))
	require.NoError(t, l.BurnFrom(op, "bob", 500, 2))

	stats := l.Stats()
	require.Equal(t, stats.TotalMinted-stats.TotalBurned, stats.TotalSupply)

	sum := l.BalanceOf("alice") + l.BalanceOf("bob") + l.BalanceOf("carol")
	require.Equal(t, stats.TotalSupply, sum)
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Mint(op, "alice", 100, 1, 100))

	err := l.Transfer("alice", "bob", 101)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestUpdateCollateralValue_Overwrites(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Mint(op, "alice", 1000, 1, 2000))

	require.NoError(t, l.UpdateCollateralValue(op, 1500))
	require.Equal(t, uint64(1500), l.Stats().TotalCollateralValue)

	err := l.UpdateCollateralValue("mallory", 1)
	require.ErrorIs(t, err, ErrNotOperator)
}

func TestStats_CollateralizationRatio(t *testing.T) {
	l := newTestLedger()

	require.Equal(t, uint64(0), l.Stats().CollateralizationRatioBps, "zero supply yields zero ratio")

	require.NoError(t, l.Mint(op, "alice", 1000, 1, 1500))
	stats := l.Stats()
	require.Equal(t, uint64(15000), stats.CollateralizationRatioBps)
	require.Equal(t, "1500000000000000000", stats.IntrinsicValuePerToken)
}

type seededBalanceStore struct {
	holders  []HolderRecord
	backings map[int64]uint64
}

func (s *seededBalanceStore) SaveHolder(context.Context, string, uint64, []int64) error { return nil }
func (s *seededBalanceStore) SaveBacking(context.Context, int64, uint64) error          { return nil }

func (s *seededBalanceStore) LoadHolders(context.Context) ([]HolderRecord, error) {
	return s.holders, nil
}

func (s *seededBalanceStore) LoadBackings(context.Context) (map[int64]uint64, error) {
	return s.backings, nil
}

func TestNewLedgerFromStore_RestoresBalancesAndBackings(t *testing.T) {
	store := &seededBalanceStore{
		holders: []HolderRecord{
			{Holder: "alice", Balance: 59400, AssetIDs: []int64{1}},
			{Holder: "bob", Balance: 9600, AssetIDs: []int64{2}},
		},
		backings: map[int64]uint64{1: 59400, 2: 9600},
	}

	l, err := NewLedgerFromStore(context.Background(), []string{op}, store, events.NopPublisher{})
	require.NoError(t, err)

	require.Equal(t, uint64(59400), l.BalanceOf("alice"))
	require.Equal(t, uint64(9600), l.BalanceOf("bob"))
	require.Equal(t, []int64{1}, l.HolderAssets("alice"))
	require.Equal(t, uint64(59400), l.AssetBacking(1))

	stats := l.Stats()
	require.Equal(t, uint64(69000), stats.TotalSupply)
	require.Equal(t, stats.TotalSupply, stats.TotalMinted-stats.TotalBurned)

	// Restored backings still bound burns.
	require.NoError(t, l.BurnFrom(op, "alice", 59400, 1))
	require.ErrorIs(t, l.BurnFrom(op, "bob", 9600, 1), ErrInsufficientBacking)
}
