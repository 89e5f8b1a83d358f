package shares

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"primevault/pkg/events"
)

var (
	ErrNotOperator         = errors.New("caller is not a registered ledger operator")
	ErrClassNotFound       = errors.New("share class not found")
	ErrInvalidShareCount   = errors.New("total shares must be in (1, 10000]")
	ErrInvalidShareValue   = errors.New("share value must be positive")
	ErrZeroAmount          = errors.New("amount must be positive")
	ErrExceedsTotalShares  = errors.New("mint exceeds class total shares")
	ErrInsufficientBalance = errors.New("insufficient share balance")
)

// Ledger is the per-asset multi-token share ledger. Class creation and
// minting are operator-gated; transfers and burns are holder-initiated.
type Ledger interface {
	CreateShareClass(operator string, assetID int64, totalShares, shareValue uint64, description string) (int64, error)
	Mint(operator, to string, classID int64, amount uint64) error
	Burn(from string, classID int64, amount uint64) error
	Transfer(from, to string, classID int64, amount uint64) error
	SetRedeemable(operator string, classID int64, redeemable bool) error

	GetClass(classID int64) (ShareClass, error)
	BalanceOf(holder string, classID int64) uint64
	ClassSupply(classID int64) uint64
	ListClasses() []ShareClass
}

type ledger struct {
	mu sync.Mutex

	operators map[string]bool
	classes   map[int64]*ShareClass
	balances  map[int64]map[string]uint64
	nextID    int64

	repo ClassStore // optional write-behind persistence
	pub  events.Publisher
}

func NewLedger(operators []string, repo ClassStore, pub events.Publisher) Ledger {
	ops := make(map[string]bool, len(operators))
	for _, op := range operators {
		ops[op] = true
	}
	return &ledger{
		operators: ops,
		classes:   make(map[int64]*ShareClass),
		balances:  make(map[int64]map[string]uint64),
		nextID:    1,
		repo:      repo,
		pub:       pub,
	}
}

// NewLedgerFromStore builds a Ledger preloaded with persisted classes and
// balances. A class's minted figure equals the sum of its outstanding
// balances, so it is rebuilt rather than stored.
func NewLedgerFromStore(ctx context.Context, operators []string, repo ClassStore, pub events.Publisher) (Ledger, error) {
	l := NewLedger(operators, repo, pub).(*ledger)
	if repo == nil {
		return l, nil
	}

	classes, err := repo.LoadClasses(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := repo.LoadBalances(ctx)
	if err != nil {
		return nil, err
	}

	for i := range classes {
		class := classes[i]
		for _, balance := range balances[class.ID] {
			class.Minted += balance
		}
		l.classes[class.ID] = &class
		l.balances[class.ID] = make(map[string]uint64)
		for holder, balance := range balances[class.ID] {
			if balance > 0 {
				l.balances[class.ID][holder] = balance
			}
		}
		if class.ID >= l.nextID {
			l.nextID = class.ID + 1
		}
	}
	return l, nil
}

func (l *ledger) CreateShareClass(operator string, assetID int64, totalShares, shareValue uint64, description string) (int64, error) {
	if totalShares <= 1 || totalShares > MaxSharesPerClass {
		return 0, ErrInvalidShareCount
	}
	if shareValue == 0 {
		return 0, ErrInvalidShareValue
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[operator] {
		return 0, ErrNotOperator
	}

	id := l.nextID
	l.nextID++

	class := &ShareClass{
		ID:          id,
		AssetID:     assetID,
		TotalShares: totalShares,
		ShareValue:  shareValue,
		Description: description,
		CreatedAt:   time.Now(),
	}
	l.classes[id] = class
	l.balances[id] = make(map[string]uint64)

	l.persistClass(class)
	l.pub.Publish(events.KindShareClassCreated, id, map[string]any{
		"asset_id": assetID, "total_shares": totalShares, "share_value": shareValue,
	})
	return id, nil
}

func (l *ledger) Mint(operator, to string, classID int64, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[operator] {
		return ErrNotOperator
	}
	class, ok := l.classes[classID]
	if !ok {
		return ErrClassNotFound
	}
	if class.Minted+amount > class.TotalShares {
		return ErrExceedsTotalShares
	}

	class.Minted += amount
	l.balances[classID][to] += amount

	l.persistClass(class)
	l.persistBalance(classID, to)
	l.pub.Publish(events.KindSharesMinted, classID, map[string]any{"to": to, "amount": amount})
	return nil
}

func (l *ledger) Burn(from string, classID int64, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	class, ok := l.classes[classID]
	if !ok {
		return ErrClassNotFound
	}
	if l.balances[classID][from] < amount {
		return ErrInsufficientBalance
	}

	class.Minted -= amount
	l.balances[classID][from] -= amount

	l.persistClass(class)
	l.persistBalance(classID, from)
	l.pub.Publish(events.KindSharesBurned, classID, map[string]any{"from": from, "amount": amount})
	return nil
}

// Transfer moves shares between holders. It fires two distinct notifications
// per transfer: the holder-facing ShareTransferred and the bookkeeping
// ShareBalanceChanged, mirrored from the original ledger's double emission.
func (l *ledger) Transfer(from, to string, classID int64, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.classes[classID]; !ok {
		return ErrClassNotFound
	}
	if l.balances[classID][from] < amount {
		return ErrInsufficientBalance
	}

	l.balances[classID][from] -= amount
	l.balances[classID][to] += amount

	l.persistBalance(classID, from)
	l.persistBalance(classID, to)
	l.pub.Publish(events.KindShareTransferred, classID, map[string]any{
		"from": from, "to": to, "amount": amount,
	})
	l.pub.Publish(events.KindShareBalanceChanged, classID, map[string]any{
		"from": from, "from_balance": l.balances[classID][from],
		"to": to, "to_balance": l.balances[classID][to],
	})
	return nil
}

func (l *ledger) SetRedeemable(operator string, classID int64, redeemable bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[operator] {
		return ErrNotOperator
	}
	class, ok := l.classes[classID]
	if !ok {
		return ErrClassNotFound
	}

	class.Redeemable = redeemable
	l.persistClass(class)
	return nil
}

func (l *ledger) GetClass(classID int64) (ShareClass, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	class, ok := l.classes[classID]
	if !ok {
		return ShareClass{}, ErrClassNotFound
	}
	return *class, nil
}

func (l *ledger) BalanceOf(holder string, classID int64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[classID][holder]
}

// ClassSupply is the sum of outstanding balances for a class.
func (l *ledger) ClassSupply(classID int64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total uint64
	for _, b := range l.balances[classID] {
		total += b
	}
	return total
}

func (l *ledger) ListClasses() []ShareClass {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ShareClass, 0, len(l.classes))
	for _, class := range l.classes {
		out = append(out, *class)
	}
	return out
}

func (l *ledger) persistClass(class *ShareClass) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveClass(context.Background(), *class); err != nil {
		log.Printf("share class persist failed for %d: %v", class.ID, err)
	}
}

func (l *ledger) persistBalance(classID int64, holder string) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveBalance(context.Background(), classID, holder, l.balances[classID][holder]); err != nil {
		log.Printf("share balance persist failed for %d/%s: %v", classID, holder, err)
	}
}
