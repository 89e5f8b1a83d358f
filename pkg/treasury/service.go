package treasury

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
	ErrPaused           = errors.New("treasury is paused")
	ErrSecurityNotFound = errors.New("security not found")
	ErrInvalidStatus    = errors.New("operation not allowed in current security status")
	ErrInvalidSecurity  = errors.New("invalid security parameters")
	ErrNotWhitelisted   = errors.New("account is not whitelisted")
	ErrNotAccredited    = errors.New("account is not an accredited investor")
	ErrKYCNotPassed     = errors.New("account has not passed KYC")
	ErrZeroUnits        = errors.New("units must be positive")
	ErrExceedsOffering  = errors.New("purchase exceeds remaining offered units")
	ErrNoHolding        = errors.New("account holds no units of this security")
	ErrCouponOutOfOrder = errors.New("coupon must be recorded for the next unpaid scheduled date")
	ErrNotYetMature     = errors.New("maturity date has not been reached")
	ErrInvestorNotFound = errors.New("investor not found")
)

// RegisterInput carries the fields of a new security offering.
type RegisterInput struct {
	CUSIP          string
	Issuer         string
	FaceValue      uint64
	CouponRateBps  uint64
	IssueDate      time.Time
	MaturityDate   time.Time
	CouponsPerYear int
	TotalUnits     uint64
}

// Service is the fixed-income state machine: security offerings, the
// compliance whitelist, investor holdings and the coupon schedule. It runs
// under its own mutex and pause flag, independent of the vault core.
type Service interface {
	RegisterSecurity(ctx context.Context, callerUUID string, in RegisterInput) (Security, error)
	ActivateSecurity(ctx context.Context, callerUUID string, securityID int64) (Security, error)
	WhitelistInvestor(ctx context.Context, callerUUID, accountUUID string, kycPassed, accredited bool, jurisdiction string) (Investor, error)
	RevokeInvestor(ctx context.Context, callerUUID, accountUUID string) error
	Purchase(ctx context.Context, callerUUID string, securityID int64, units uint64) (Holding, error)
	RecordCouponPayment(ctx context.Context, callerUUID string, securityID int64, scheduledAt time.Time) error
	MatureSecurity(ctx context.Context, callerUUID string, securityID int64) (Security, error)
	RedeemHolding(ctx context.Context, callerUUID string, securityID int64) (uint64, error)
	Pause(ctx context.Context, callerUUID string) error
	Unpause(ctx context.Context, callerUUID string) error

	GetSecurity(securityID int64) (Security, error)
	ListSecurities() []Security
	GetInvestor(accountUUID string) (Investor, error)
	CouponSchedule(securityID int64) ([]time.Time, error)
	CouponPayments(securityID int64) []CouponPayment
	HoldingOf(accountUUID string, securityID int64) uint64
	ListHoldings(accountUUID string) []Holding
}

type service struct {
	mu sync.Mutex

	securities map[int64]*Security
	investors  map[string]*Investor
	holdings   map[string]map[int64]*Holding
	payments   map[int64][]CouponPayment

	nextSecurityID int64
	paused         bool

	roles access.Checker
	repo  Repository // optional write-behind persistence
	pub   events.Publisher

	now func() time.Time
}

func NewService(roles access.Checker, repo Repository, pub events.Publisher) Service {
	return &service{
		securities:     make(map[int64]*Security),
		investors:      make(map[string]*Investor),
		holdings:       make(map[string]map[int64]*Holding),
		payments:       make(map[int64][]CouponPayment),
		nextSecurityID: 1,
		roles:          roles,
		repo:           repo,
		pub:            pub,
		now:            time.Now,
	}
}

// NewServiceFromStore builds a Service preloaded with persisted securities,
// investors, holdings and coupon history, and resumes security IDs after the
// highest persisted one.
func NewServiceFromStore(ctx context.Context, roles access.Checker, repo Repository, pub events.Publisher) (Service, error) {
	s := NewService(roles, repo, pub).(*service)
	if repo == nil {
		return s, nil
	}

	securities, err := repo.LoadSecurities(ctx)
	if err != nil {
		return nil, err
	}
	investors, err := repo.LoadInvestors(ctx)
	if err != nil {
		return nil, err
	}
	holdings, err := repo.LoadHoldings(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := repo.LoadCouponPayments(ctx)
	if err != nil {
		return nil, err
	}

	for i := range securities {
		sec := securities[i]
		s.securities[sec.ID] = &sec
		if sec.ID >= s.nextSecurityID {
			s.nextSecurityID = sec.ID + 1
		}
	}
	for i := range investors {
		inv := investors[i]
		s.investors[inv.AccountUUID] = &inv
	}
	for i := range holdings {
		h := holdings[i]
		if h.Units == 0 {
			continue
		}
		if s.holdings[h.AccountUUID] == nil {
			s.holdings[h.AccountUUID] = make(map[int64]*Holding)
		}
		s.holdings[h.AccountUUID][h.SecurityID] = &h
	}
	// Loaded in (security_id, scheduled_at) order, matching the strict
	// recording order.
	for _, p := range payments {
		s.payments[p.SecurityID] = append(s.payments[p.SecurityID], p)
	}
	return s, nil
}

func (s *service) RegisterSecurity(ctx context.Context, callerUUID string, in RegisterInput) (Security, error) {
	if in.FaceValue == 0 || in.TotalUnits == 0 ||
		!isValidFrequency(in.CouponsPerYear) ||
		!in.MaturityDate.After(in.IssueDate) {
		return Security{}, ErrInvalidSecurity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Security{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleTreasuryManager); err != nil {
		return Security{}, err
	}

	now := s.now()
	id := s.nextSecurityID
	s.nextSecurityID++

	security := &Security{
		ID:             id,
		CUSIP:          in.CUSIP,
		Issuer:         in.Issuer,
		FaceValue:      in.FaceValue,
		CouponRateBps:  in.CouponRateBps,
		IssueDate:      in.IssueDate,
		MaturityDate:   in.MaturityDate,
		CouponsPerYear: in.CouponsPerYear,
		TotalUnits:     in.TotalUnits,
		Status:         StatusOffered,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.securities[id] = security

	s.persistSecurity(security)
	s.pub.Publish(events.KindSecurityRegistered, id, map[string]any{
		"cusip": in.CUSIP, "issuer": in.Issuer, "total_units": in.TotalUnits,
	})
	return *security, nil
}

func (s *service) ActivateSecurity(ctx context.Context, callerUUID string, securityID int64) (Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Security{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleTreasuryManager); err != nil {
		return Security{}, err
	}

	security, ok := s.securities[securityID]
	if !ok {
		return Security{}, ErrSecurityNotFound
	}
	if security.Status != StatusOffered {
		return Security{}, ErrInvalidStatus
	}

	security.Status = StatusActive
	security.UpdatedAt = s.now()

	s.persistSecurity(security)
	s.pub.Publish(events.KindSecurityActivated, securityID, nil)
	return *security, nil
}

func (s *service) WhitelistInvestor(ctx context.Context, callerUUID, accountUUID string, kycPassed, accredited bool, jurisdiction string) (Investor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Investor{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleCompliance); err != nil {
		return Investor{}, err
	}

	now := s.now()
	investor, ok := s.investors[accountUUID]
	if !ok {
		investor = &Investor{AccountUUID: accountUUID, CreatedAt: now}
		s.investors[accountUUID] = investor
	}
	investor.KYCPassed = kycPassed
	investor.Accredited = accredited
	investor.Jurisdiction = jurisdiction
	investor.Whitelisted = true
	investor.UpdatedAt = now

	s.persistInvestor(investor)
	s.pub.Publish(events.KindInvestorWhitelisted, 0, map[string]any{"account": accountUUID})
	return *investor, nil
}

func (s *service) RevokeInvestor(ctx context.Context, callerUUID, accountUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleCompliance); err != nil {
		return err
	}

	investor, ok := s.investors[accountUUID]
	if !ok || !investor.Whitelisted {
		return ErrInvestorNotFound
	}

	investor.Whitelisted = false
	investor.UpdatedAt = s.now()

	s.persistInvestor(investor)
	s.pub.Publish(events.KindInvestorRevoked, 0, map[string]any{"account": accountUUID})
	return nil
}

// Purchase sells units of an active security to a whitelisted accredited
// investor. The cash leg settles outside the core.
func (s *service) Purchase(ctx context.Context, callerUUID string, securityID int64, units uint64) (Holding, error) {
	if units == 0 {
		return Holding{}, ErrZeroUnits
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Holding{}, ErrPaused
	}

	investor, ok := s.investors[callerUUID]
	if !ok || !investor.Whitelisted {
		return Holding{}, ErrNotWhitelisted
	}
	if !investor.KYCPassed {
		return Holding{}, ErrKYCNotPassed
	}
	if !investor.Accredited {
		return Holding{}, ErrNotAccredited
	}

	security, ok := s.securities[securityID]
	if !ok {
		return Holding{}, ErrSecurityNotFound
	}
	if security.Status != StatusActive {
		return Holding{}, ErrInvalidStatus
	}
	if units > security.TotalUnits-security.SoldUnits {
		return Holding{}, ErrExceedsOffering
	}

	now := s.now()
	security.SoldUnits += units
	security.UpdatedAt = now

	positions, ok := s.holdings[callerUUID]
	if !ok {
		positions = make(map[int64]*Holding)
		s.holdings[callerUUID] = positions
	}
	holding, ok := positions[securityID]
	if !ok {
		holding = &Holding{AccountUUID: callerUUID, SecurityID: securityID, AcquiredAt: now}
		positions[securityID] = holding
	}
	holding.Units += units

	s.persistSecurity(security)
	s.persistHolding(holding)
	s.pub.Publish(events.KindSecurityPurchased, securityID, map[string]any{
		"account": callerUUID, "units": units,
	})
	return *holding, nil
}

// RecordCouponPayment marks the next unpaid scheduled coupon date as paid.
// Dates must be recorded strictly in schedule order.
func (s *service) RecordCouponPayment(ctx context.Context, callerUUID string, securityID int64, scheduledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleTreasuryManager); err != nil {
		return err
	}

	security, ok := s.securities[securityID]
	if !ok {
		return ErrSecurityNotFound
	}
	if security.Status != StatusActive {
		return ErrInvalidStatus
	}

	schedule := couponSchedule(security)
	paid := len(s.payments[securityID])
	if paid >= len(schedule) || !schedule[paid].Equal(scheduledAt) {
		return ErrCouponOutOfOrder
	}

	payment := CouponPayment{SecurityID: securityID, ScheduledAt: scheduledAt, PaidAt: s.now()}
	s.payments[securityID] = append(s.payments[securityID], payment)

	s.persistPayment(&payment)
	s.pub.Publish(events.KindCouponPaid, securityID, map[string]any{
		"scheduled_at": scheduledAt, "sequence": paid + 1,
	})
	return nil
}

func (s *service) MatureSecurity(ctx context.Context, callerUUID string, securityID int64) (Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Security{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleTreasuryManager); err != nil {
		return Security{}, err
	}

	security, ok := s.securities[securityID]
	if !ok {
		return Security{}, ErrSecurityNotFound
	}
	if security.Status != StatusActive {
		return Security{}, ErrInvalidStatus
	}
	if s.now().Before(security.MaturityDate) {
		return Security{}, ErrNotYetMature
	}

	security.Status = StatusMatured
	security.UpdatedAt = s.now()

	s.persistSecurity(security)
	s.pub.Publish(events.KindSecurityMatured, securityID, nil)
	return *security, nil
}

// RedeemHolding pays out face value per unit on a matured security and
// zeroes the caller's position. When every sold unit has been redeemed the
// security moves to Redeemed.
func (s *service) RedeemHolding(ctx context.Context, callerUUID string, securityID int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return 0, ErrPaused
	}

	security, ok := s.securities[securityID]
	if !ok {
		return 0, ErrSecurityNotFound
	}
	if security.Status != StatusMatured {
		return 0, ErrInvalidStatus
	}

	holding, ok := s.holdings[callerUUID][securityID]
	if !ok || holding.Units == 0 {
		return 0, ErrNoHolding
	}

	units := holding.Units
	payout, err := numeric.MulDiv(units, security.FaceValue, 1)
	if err != nil {
		return 0, err
	}

	now := s.now()
	holding.Units = 0
	security.RedeemedUnits += units
	security.UpdatedAt = now
	if security.RedeemedUnits == security.SoldUnits {
		security.Status = StatusRedeemed
	}

	s.persistSecurity(security)
	s.persistHolding(holding)
	s.pub.Publish(events.KindHoldingRedeemed, securityID, map[string]any{
		"account": callerUUID, "units": units, "payout": payout,
	})
	return payout, nil
}

func (s *service) Pause(ctx context.Context, callerUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRole(ctx, callerUUID, access.RoleEmergency); err != nil {
		return err
	}
	s.paused = true
	return nil
}

func (s *service) Unpause(ctx context.Context, callerUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRole(ctx, callerUUID, access.RoleEmergency); err != nil {
		return err
	}
	s.paused = false
	return nil
}

func (s *service) GetSecurity(securityID int64) (Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	security, ok := s.securities[securityID]
	if !ok {
		return Security{}, ErrSecurityNotFound
	}
	return *security, nil
}

func (s *service) ListSecurities() []Security {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Security, 0, len(s.securities))
	for id := int64(1); id < s.nextSecurityID; id++ {
		if sec, ok := s.securities[id]; ok {
			out = append(out, *sec)
		}
	}
	return out
}

func (s *service) GetInvestor(accountUUID string) (Investor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	investor, ok := s.investors[accountUUID]
	if !ok {
		return Investor{}, ErrInvestorNotFound
	}
	return *investor, nil
}

// CouponSchedule derives the coupon dates from issue to maturity at the
// security's configured frequency.
func (s *service) CouponSchedule(securityID int64) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	security, ok := s.securities[securityID]
	if !ok {
		return nil, ErrSecurityNotFound
	}
	return couponSchedule(security), nil
}

func (s *service) CouponPayments(securityID int64) []CouponPayment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]CouponPayment(nil), s.payments[securityID]...)
}

func (s *service) HoldingOf(accountUUID string, securityID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	holding, ok := s.holdings[accountUUID][securityID]
	if !ok {
		return 0
	}
	return holding.Units
}

func (s *service) ListHoldings(accountUUID string) []Holding {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := s.holdings[accountUUID]
	out := make([]Holding, 0, len(positions))
	for _, h := range positions {
		if h.Units > 0 {
			out = append(out, *h)
		}
	}
	return out
}

func couponSchedule(security *Security) []time.Time {
	stepMonths := 12 / security.CouponsPerYear
	var dates []time.Time
	for d := security.IssueDate.AddDate(0, stepMonths, 0); !d.After(security.MaturityDate); d = d.AddDate(0, stepMonths, 0) {
		dates = append(dates, d)
	}
	return dates
}

func (s *service) requireRole(ctx context.Context, uuid, role string) error {
	ok, err := s.roles.HasRole(ctx, uuid, role)
	if err != nil {
		return err
	}
	if !ok {
		return access.ErrNotAuthorized
	}
	return nil
}

func (s *service) persistSecurity(security *Security) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveSecurity(context.Background(), *security); err != nil {
		log.Printf("security persist failed for %d: %v", security.ID, err)
	}
}

func (s *service) persistInvestor(investor *Investor) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveInvestor(context.Background(), *investor); err != nil {
		log.Printf("investor persist failed for %s: %v", investor.AccountUUID, err)
	}
}

func (s *service) persistHolding(holding *Holding) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveHolding(context.Background(), *holding); err != nil {
		log.Printf("holding persist failed for %s/%d: %v", holding.AccountUUID, holding.SecurityID, err)
	}
}

func (s *service) persistPayment(payment *CouponPayment) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveCouponPayment(context.Background(), *payment); err != nil {
		log.Printf("coupon payment persist failed for %d: %v", payment.SecurityID, err)
	}
}
