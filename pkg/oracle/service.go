package oracle

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"primevault/pkg/access"
	"primevault/pkg/events"
	"primevault/pkg/numeric"
)

var (
	ErrNoPrice      = errors.New("no price available for asset type")
	ErrStalePrice   = errors.New("price is stale")
	ErrBadRound     = errors.New("feed returned stale or out-of-order round")
	ErrInvalidPrice = errors.New("price must be positive")
	ErrNoFeed       = errors.New("no feed registered for asset type")
)

type Service interface {
	GetPrice(ctx context.Context, assetType string) (Quote, error)
	ValidatePrice(ctx context.Context, assetType string, proposed uint64) (bool, error)
	SetManualPrice(ctx context.Context, callerUUID, assetType string, price uint64) error
	AddPriceFeed(ctx context.Context, callerUUID, assetType string, feed PriceFeed) error
	RemovePriceFeed(ctx context.Context, callerUUID, assetType string) error
	ListQuotes(ctx context.Context) []Quote
}

type service struct {
	mu     sync.Mutex
	manual map[string]manualPrice
	feeds  map[string]PriceFeed

	roles access.Checker
	repo  PriceRepository // optional write-behind store for manual prices
	pub   events.Publisher
}

func NewService(roles access.Checker, repo PriceRepository, pub events.Publisher) Service {
	return &service{
		manual: make(map[string]manualPrice),
		feeds:  make(map[string]PriceFeed),
		roles:  roles,
		repo:   repo,
		pub:    pub,
	}
}

// LoadManualPrices seeds the in-memory table from the store; called once at startup.
func (s *service) loadManualPrices(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	quotes, err := s.repo.ListManualPrices(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quotes {
		s.manual[q.AssetType] = manualPrice{price: q.Price, updatedAt: q.UpdatedAt}
	}
	return nil
}

// NewServiceFromStore builds a Service preloaded with persisted manual prices.
func NewServiceFromStore(ctx context.Context, roles access.Checker, repo PriceRepository, pub events.Publisher) (Service, error) {
	s := &service{
		manual: make(map[string]manualPrice),
		feeds:  make(map[string]PriceFeed),
		roles:  roles,
		repo:   repo,
		pub:    pub,
	}
	if err := s.loadManualPrices(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// GetPrice prefers a registered feed and falls back to the manual price.
// Both paths reject stale data; a feed additionally rejects out-of-order rounds.
func (s *service) GetPrice(ctx context.Context, assetType string) (Quote, error) {
	s.mu.Lock()
	feed, hasFeed := s.feeds[assetType]
	mp, hasManual := s.manual[assetType]
	s.mu.Unlock()

	if hasFeed {
		round, err := feed.LatestRound(ctx)
		if err == nil {
			if round.Price == 0 {
				return Quote{}, ErrBadRound
			}
			if round.AnsweredInRound < round.RoundID {
				return Quote{}, ErrBadRound
			}
			if round.UpdatedAt.IsZero() || time.Since(round.UpdatedAt) > MaxPriceAge {
				return Quote{}, ErrStalePrice
			}
			return Quote{AssetType: assetType, Price: round.Price, UpdatedAt: round.UpdatedAt, Source: "feed"}, nil
		}
		log.Printf("price feed for %s unreachable, falling back to manual: %v", assetType, err)
	}

	if !hasManual {
		return Quote{}, ErrNoPrice
	}
	if time.Since(mp.updatedAt) > MaxPriceAge {
		return Quote{}, ErrStalePrice
	}
	return Quote{AssetType: assetType, Price: mp.price, UpdatedAt: mp.updatedAt, Source: "manual"}, nil
}

// ValidatePrice reports whether a proposed price sits within MaxDeviationBps
// of the reference. With no reference price it accepts any proposal.
func (s *service) ValidatePrice(ctx context.Context, assetType string, proposed uint64) (bool, error) {
	quote, err := s.GetPrice(ctx, assetType)
	if err != nil {
		if errors.Is(err, ErrNoPrice) || errors.Is(err, ErrStalePrice) || errors.Is(err, ErrBadRound) {
			return true, nil
		}
		return false, err
	}

	diff := absDiff(proposed, quote.Price)
	return numeric.WithinBps(diff, quote.Price, MaxDeviationBps), nil
}

// DeviationBps is the absolute deviation of proposed from reference in basis
// points, floored. Display only; the validation bound compares exactly.
func DeviationBps(proposed, reference uint64) uint64 {
	if reference == 0 {
		return 0
	}
	return numeric.RatioBps(absDiff(proposed, reference), reference)
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (s *service) SetManualPrice(ctx context.Context, callerUUID, assetType string, price uint64) error {
	if price == 0 {
		return ErrInvalidPrice
	}
	if err := requireRole(ctx, s.roles, callerUUID, access.RoleGovernance); err != nil {
		return err
	}

	now := time.Now()

	s.mu.Lock()
	s.manual[assetType] = manualPrice{price: price, updatedAt: now}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.UpsertManualPrice(ctx, assetType, price, now); err != nil {
			log.Printf("manual price persist failed for %s: %v", assetType, err)
		}
	}
	s.pub.Publish(events.KindManualPriceSet, 0, map[string]any{"asset_type": assetType, "price": price})
	return nil
}

func (s *service) AddPriceFeed(ctx context.Context, callerUUID, assetType string, feed PriceFeed) error {
	if err := requireRole(ctx, s.roles, callerUUID, access.RoleGovernance); err != nil {
		return err
	}

	s.mu.Lock()
	s.feeds[assetType] = feed
	s.mu.Unlock()

	s.pub.Publish(events.KindPriceFeedAdded, 0, map[string]any{"asset_type": assetType, "feed": feed.Description()})
	return nil
}

func (s *service) RemovePriceFeed(ctx context.Context, callerUUID, assetType string) error {
	if err := requireRole(ctx, s.roles, callerUUID, access.RoleGovernance); err != nil {
		return err
	}

	s.mu.Lock()
	_, ok := s.feeds[assetType]
	delete(s.feeds, assetType)
	s.mu.Unlock()

	if !ok {
		return ErrNoFeed
	}
	s.pub.Publish(events.KindPriceFeedRemoved, 0, map[string]any{"asset_type": assetType})
	return nil
}

// ListQuotes returns the currently known manual prices, including stale ones.
func (s *service) ListQuotes(ctx context.Context) []Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes := make([]Quote, 0, len(s.manual))
	for assetType, mp := range s.manual {
		quotes = append(quotes, Quote{AssetType: assetType, Price: mp.price, UpdatedAt: mp.updatedAt, Source: "manual"})
	}
	return quotes
}

func requireRole(ctx context.Context, roles access.Checker, uuid, role string) error {
	ok, err := roles.HasRole(ctx, uuid, role)
	if err != nil {
		return err
	}
	if !ok {
		return access.ErrNotAuthorized
	}
	return nil
}
