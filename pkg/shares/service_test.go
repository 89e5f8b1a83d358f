package shares

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"primevault/pkg/events"
)

const op = "vault-core"

// capturePublisher records published kinds in order.
type capturePublisher struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (p *capturePublisher) Publish(kind events.Kind, entityID int64, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
}

func newTestLedger() Ledger {
	return NewLedger([]string{op}, nil, events.NopPublisher{})
}

func TestCreateShareClass_SequentialIDs(t *testing.T) {
	l := newTestLedger()

	id1, err := l.CreateShareClass(op, 1, 1000, 10000, "asset one")
	require.NoError(t, err)
	id2, err := l.CreateShareClass(op, 2, 500, 20, "asset two")
	require.NoError(t, err)

	require.Equal(t, int64(1), id1)
	require.Equal(t, int64(2), id2)
}

func TestCreateShareClass_Bounds(t *testing.T) {
	l := newTestLedger()

	_, err := l.CreateShareClass(op, 1, 1, 100, "")
	require.ErrorIs(t, err, ErrInvalidShareCount)

	_, err = l.CreateShareClass(op, 1, 10001, 100, "")
	require.ErrorIs(t, err, ErrInvalidShareCount)

	_, err = l.CreateShareClass(op, 1, 10000, 100, "")
	require.NoError(t, err, "upper bound is inclusive")

	_, err = l.CreateShareClass(op, 1, 100, 0, "")
	require.ErrorIs(t, err, ErrInvalidShareValue)

	_, err = l.CreateShareClass("mallory", 1, 100, 100, "")
	require.ErrorIs(t, err, ErrNotOperator)
}

func TestMint_CappedByTotalShares(t *testing.T) {
	l := newTestLedger()
	classID, err := l.CreateShareClass(op, 1, 1000, 10000, "")
	require.NoError(t, err)

	require.NoError(t, l.Mint(op, "alice", classID, 600))
	require.NoError(t, l.Mint(op, "bob", classID, 400))

	err = l.Mint(op, "carol", classID, 1)
	require.ErrorIs(t, err, ErrExceedsTotalShares)

	require.Equal(t, uint64(1000), l.ClassSupply(classID))
}

func TestBurnAndTransfer(t *testing.T) {
	l := newTestLedger()
	classID, err := l.CreateShareClass(op, 1, 1000, 10000, "")
	require.NoError(t, err)
	require.NoError(t, l.Mint(op, "alice", classID, 1000))

	require.NoError(t, l.Transfer("alice", "bob", classID, 300))
	require.Equal(t, uint64(700), l.BalanceOf("alice", classID))
	require.Equal(t, uint64(300), l.BalanceOf("bob", classID))

	require.NoError(t, l.Burn("bob", classID, 300))
	require.Equal(t, uint64(0), l.BalanceOf("bob", classID))
	require.Equal(t, uint64(700), l.ClassSupply(classID))

	err = l.Transfer("bob", "alice", classID, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransfer_EmitsBothSignals(t *testing.T) {
	pub := &capturePublisher{}
	l := NewLedger([]string{op}, nil, pub)

	classID, err := l.CreateShareClass(op, 1, 100, 10, "")
	require.NoError(t, err)
	require.NoError(t, l.Mint(op, "alice", classID, 100))

	pub.kinds = nil
	require.NoError(t, l.Transfer("alice", "bob", classID, 10))

	require.Equal(t, []events.Kind{events.KindShareTransferred, events.KindShareBalanceChanged}, pub.kinds)
}

func TestSetRedeemable(t *testing.T) {
	l := newTestLedger()
	classID, err := l.CreateShareClass(op, 1, 100, 10, "")
	require.NoError(t, err)

	require.NoError(t, l.SetRedeemable(op, classID, true))
	class, err := l.GetClass(classID)
	require.NoError(t, err)
	require.True(t, class.Redeemable)

	err = l.SetRedeemable("mallory", classID, false)
	require.ErrorIs(t, err, ErrNotOperator)
}

type seededClassStore struct {
	classes  []ShareClass
	balances map[int64]map[string]uint64
}

func (s *seededClassStore) SaveClass(context.Context, ShareClass) error              { return nil }
func (s *seededClassStore) SaveBalance(context.Context, int64, string, uint64) error { return nil }
func (s *seededClassStore) LoadClasses(context.Context) ([]ShareClass, error)        { return s.classes, nil }
func (s *seededClassStore) LoadBalances(context.Context) (map[int64]map[string]uint64, error) {
	return s.balances, nil
}

func TestNewLedgerFromStore_ResumesClassIDs(t *testing.T) {
	store := &seededClassStore{
		classes: []ShareClass{
			{ID: 3, AssetID: 7, TotalShares: 1000, ShareValue: 10000},
		},
		balances: map[int64]map[string]uint64{
			3: {"alice": 600, "bob": 400},
		},
	}

	l, err := NewLedgerFromStore(context.Background(), []string{op}, store, events.NopPublisher{})
	require.NoError(t, err)

	class, err := l.GetClass(3)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), class.Minted, "minted rebuilt from balances")
	require.Equal(t, uint64(600), l.BalanceOf("alice", 3))
	require.Equal(t, uint64(1000), l.ClassSupply(3))

	// Fully subscribed class admits no further minting.
	require.ErrorIs(t, l.Mint(op, "carol", 3, 1), ErrExceedsTotalShares)

	// New classes continue after the highest persisted ID.
	id, err := l.CreateShareClass(op, 8, 100, 5000, "")
	require.NoError(t, err)
	require.Equal(t, int64(4), id)
}
