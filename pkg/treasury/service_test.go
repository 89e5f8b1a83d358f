package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"primevault/pkg/access"
	"primevault/pkg/events"
	"primevault/pkg/numeric"
)

const (
	managerUUID    = "manager-1"
	complianceUUID = "compliance-1"
	emergencyUUID  = "emergency-1"
	investorUUID   = "investor-1"
)

type roleTable map[string][]string

func (r roleTable) HasRole(ctx context.Context, accountUUID, role string) (bool, error) {
	for _, have := range r[accountUUID] {
		if have == role {
			return true, nil
		}
	}
	return false, nil
}

type fixture struct {
	svc  Service
	raw  *service
	base time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	roles := roleTable{
		managerUUID:    {access.RoleTreasuryManager},
		complianceUUID: {access.RoleCompliance},
		emergencyUUID:  {access.RoleEmergency},
	}
	svc := NewService(roles, nil, events.NopPublisher{})
	raw := svc.(*service)
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	raw.now = func() time.Time { return base }

	return &fixture{svc: svc, raw: raw, base: base}
}

func (f *fixture) setNow(t *testing.T, at time.Time) {
	t.Helper()
	f.raw.now = func() time.Time { return at }
}

func (f *fixture) registeredSecurity(t *testing.T) int64 {
	t.Helper()
	security, err := f.svc.RegisterSecurity(context.Background(), managerUUID, RegisterInput{
		CUSIP:          "912828XG0",
		Issuer:         "US Treasury",
		FaceValue:      1000,
		CouponRateBps:  425,
		IssueDate:      f.base,
		MaturityDate:   f.base.AddDate(2, 0, 0),
		CouponsPerYear: FrequencySemiAnnual,
		TotalUnits:     10000,
	})
	require.NoError(t, err)
	return security.ID
}

func (f *fixture) activeSecurity(t *testing.T) int64 {
	t.Helper()
	id := f.registeredSecurity(t)
	_, err := f.svc.ActivateSecurity(context.Background(), managerUUID, id)
	require.NoError(t, err)
	return id
}

func (f *fixture) whitelisted(t *testing.T, account string) {
	t.Helper()
	_, err := f.svc.WhitelistInvestor(context.Background(), complianceUUID, account, true, true, "US")
	require.NoError(t, err)
}

func TestRegisterSecurity(t *testing.T) {
	f := newFixture(t)
	id := f.registeredSecurity(t)

	security, err := f.svc.GetSecurity(id)
	require.NoError(t, err)
	require.Equal(t, StatusOffered, security.Status)
	require.Equal(t, int64(1), security.ID)
}

func TestRegisterSecurity_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := RegisterInput{
		CUSIP: "X", Issuer: "Y", FaceValue: 1000, IssueDate: f.base,
		MaturityDate: f.base.AddDate(1, 0, 0), CouponsPerYear: 2, TotalUnits: 100,
	}

	bad := in
	bad.FaceValue = 0
	_, err := f.svc.RegisterSecurity(ctx, managerUUID, bad)
	require.ErrorIs(t, err, ErrInvalidSecurity)

	bad = in
	bad.CouponsPerYear = 3
	_, err = f.svc.RegisterSecurity(ctx, managerUUID, bad)
	require.ErrorIs(t, err, ErrInvalidSecurity)

	bad = in
	bad.MaturityDate = f.base.AddDate(-1, 0, 0)
	_, err = f.svc.RegisterSecurity(ctx, managerUUID, bad)
	require.ErrorIs(t, err, ErrInvalidSecurity)

	_, err = f.svc.RegisterSecurity(ctx, investorUUID, in)
	require.ErrorIs(t, err, access.ErrNotAuthorized)
}

func TestPurchase_ComplianceGates(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, investorUUID, id, 100)
	require.ErrorIs(t, err, ErrNotWhitelisted)

	_, err = f.svc.WhitelistInvestor(ctx, complianceUUID, investorUUID, false, true, "US")
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, investorUUID, id, 100)
	require.ErrorIs(t, err, ErrKYCNotPassed)

	_, err = f.svc.WhitelistInvestor(ctx, complianceUUID, investorUUID, true, false, "US")
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, investorUUID, id, 100)
	require.ErrorIs(t, err, ErrNotAccredited)

	f.whitelisted(t, investorUUID)
	holding, err := f.svc.Purchase(ctx, investorUUID, id, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), holding.Units)
}

func TestPurchase_OfferingCap(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	f.whitelisted(t, investorUUID)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, investorUUID, id, 10001)
	require.ErrorIs(t, err, ErrExceedsOffering)

	_, err = f.svc.Purchase(ctx, investorUUID, id, 10000)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, investorUUID, id, 1)
	require.ErrorIs(t, err, ErrExceedsOffering)
}

func TestPurchase_OnlyActive(t *testing.T) {
	f := newFixture(t)
	id := f.registeredSecurity(t)
	f.whitelisted(t, investorUUID)

	_, err := f.svc.Purchase(context.Background(), investorUUID, id, 100)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRevokeInvestor_BlocksFurtherPurchases(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	f.whitelisted(t, investorUUID)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, investorUUID, id, 100)
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeInvestor(ctx, complianceUUID, investorUUID))

	_, err = f.svc.Purchase(ctx, investorUUID, id, 100)
	require.ErrorIs(t, err, ErrNotWhitelisted)

	// The existing holding survives revocation.
	require.Equal(t, uint64(100), f.svc.HoldingOf(investorUUID, id))
}

func TestCouponSchedule(t *testing.T) {
	f := newFixture(t)
	id := f.registeredSecurity(t)

	schedule, err := f.svc.CouponSchedule(id)
	require.NoError(t, err)
	// Two years at semi-annual frequency.
	require.Len(t, schedule, 4)
	require.Equal(t, f.base.AddDate(0, 6, 0), schedule[0])
	require.Equal(t, f.base.AddDate(2, 0, 0), schedule[3])
}

func TestRecordCouponPayment_StrictOrder(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	ctx := context.Background()

	schedule, err := f.svc.CouponSchedule(id)
	require.NoError(t, err)

	// Second date before first is rejected.
	err = f.svc.RecordCouponPayment(ctx, managerUUID, id, schedule[1])
	require.ErrorIs(t, err, ErrCouponOutOfOrder)

	require.NoError(t, f.svc.RecordCouponPayment(ctx, managerUUID, id, schedule[0]))

	// The same date twice is rejected.
	err = f.svc.RecordCouponPayment(ctx, managerUUID, id, schedule[0])
	require.ErrorIs(t, err, ErrCouponOutOfOrder)

	require.NoError(t, f.svc.RecordCouponPayment(ctx, managerUUID, id, schedule[1]))
	require.Len(t, f.svc.CouponPayments(id), 2)
}

func TestMatureSecurity_RequiresMaturityDate(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	ctx := context.Background()

	_, err := f.svc.MatureSecurity(ctx, managerUUID, id)
	require.ErrorIs(t, err, ErrNotYetMature)

	f.setNow(t, f.base.AddDate(2, 0, 0))
	security, err := f.svc.MatureSecurity(ctx, managerUUID, id)
	require.NoError(t, err)
	require.Equal(t, StatusMatured, security.Status)
}

func TestRedeemHolding(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	f.whitelisted(t, investorUUID)
	f.whitelisted(t, "investor-2")
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, investorUUID, id, 100)
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, "investor-2", id, 50)
	require.NoError(t, err)

	// Redemption before maturity is rejected.
	_, err = f.svc.RedeemHolding(ctx, investorUUID, id)
	require.ErrorIs(t, err, ErrInvalidStatus)

	f.setNow(t, f.base.AddDate(2, 0, 0))
	_, err = f.svc.MatureSecurity(ctx, managerUUID, id)
	require.NoError(t, err)

	payout, err := f.svc.RedeemHolding(ctx, investorUUID, id)
	require.NoError(t, err)
	require.Equal(t, uint64(100*1000), payout)
	require.Equal(t, uint64(0), f.svc.HoldingOf(investorUUID, id))

	// A second redemption finds nothing.
	_, err = f.svc.RedeemHolding(ctx, investorUUID, id)
	require.ErrorIs(t, err, ErrNoHolding)

	// The security closes once every sold unit is redeemed.
	_, err = f.svc.RedeemHolding(ctx, "investor-2", id)
	require.NoError(t, err)
	security, err := f.svc.GetSecurity(id)
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, security.Status)
}

func TestTreasuryPause(t *testing.T) {
	f := newFixture(t)
	id := f.activeSecurity(t)
	f.whitelisted(t, investorUUID)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Pause(ctx, investorUUID), access.ErrNotAuthorized)
	require.NoError(t, f.svc.Pause(ctx, emergencyUUID))

	_, err := f.svc.Purchase(ctx, investorUUID, id, 100)
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.svc.RegisterSecurity(ctx, managerUUID, RegisterInput{
		CUSIP: "X", Issuer: "Y", FaceValue: 1000, IssueDate: f.base,
		MaturityDate: f.base.AddDate(1, 0, 0), CouponsPerYear: 2, TotalUnits: 100,
	})
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, f.svc.Unpause(ctx, emergencyUUID))
	_, err = f.svc.Purchase(ctx, investorUUID, id, 100)
	require.NoError(t, err)
}

type seededTreasuryStore struct {
	securities []Security
	investors  []Investor
	holdings   []Holding
	payments   []CouponPayment
}

func (s *seededTreasuryStore) SaveSecurity(context.Context, Security) error           { return nil }
func (s *seededTreasuryStore) SaveInvestor(context.Context, Investor) error           { return nil }
func (s *seededTreasuryStore) SaveHolding(context.Context, Holding) error             { return nil }
func (s *seededTreasuryStore) SaveCouponPayment(context.Context, CouponPayment) error { return nil }

func (s *seededTreasuryStore) LoadSecurities(context.Context) ([]Security, error) {
	return s.securities, nil
}

func (s *seededTreasuryStore) LoadInvestors(context.Context) ([]Investor, error) {
	return s.investors, nil
}

func (s *seededTreasuryStore) LoadHoldings(context.Context) ([]Holding, error) {
	return s.holdings, nil
}

func (s *seededTreasuryStore) LoadCouponPayments(context.Context) ([]CouponPayment, error) {
	return s.payments, nil
}

func TestNewServiceFromStore_RestoresBook(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	store := &seededTreasuryStore{
		securities: []Security{
			{
				ID: 4, CUSIP: "912828XG0", Issuer: "US Treasury", FaceValue: 1000,
				CouponRateBps: 425, IssueDate: base, MaturityDate: base.AddDate(2, 0, 0),
				CouponsPerYear: FrequencySemiAnnual, TotalUnits: 10000, SoldUnits: 250,
				Status: StatusActive, CreatedAt: base, UpdatedAt: base,
			},
		},
		investors: []Investor{
			{AccountUUID: investorUUID, KYCPassed: true, Accredited: true,
				Jurisdiction: "US", Whitelisted: true, CreatedAt: base, UpdatedAt: base},
		},
		holdings: []Holding{
			{AccountUUID: investorUUID, SecurityID: 4, Units: 250, AcquiredAt: base},
			{AccountUUID: "investor-2", SecurityID: 4, Units: 0, AcquiredAt: base},
		},
		payments: []CouponPayment{
			{SecurityID: 4, ScheduledAt: base.AddDate(0, 6, 0), PaidAt: base.AddDate(0, 6, 1)},
		},
	}
	roles := roleTable{managerUUID: {access.RoleTreasuryManager}}

	svc, err := NewServiceFromStore(context.Background(), roles, store, events.NopPublisher{})
	require.NoError(t, err)

	security, err := svc.GetSecurity(4)
	require.NoError(t, err)
	require.Equal(t, StatusActive, security.Status)
	require.Equal(t, uint64(250), security.SoldUnits)

	require.Equal(t, uint64(250), svc.HoldingOf(investorUUID, 4))
	// Fully redeemed rows are dropped on reload.
	require.Empty(t, svc.ListHoldings("investor-2"))

	investor, err := svc.GetInvestor(investorUUID)
	require.NoError(t, err)
	require.True(t, investor.Whitelisted)

	paid := svc.CouponPayments(4)
	require.Len(t, paid, 1)
	require.Equal(t, base.AddDate(0, 6, 0), paid[0].ScheduledAt)

	// New registrations resume after the highest persisted ID.
	registered, err := svc.RegisterSecurity(context.Background(), managerUUID, RegisterInput{
		CUSIP:          "912828YK5",
		Issuer:         "US Treasury",
		FaceValue:      1000,
		CouponRateBps:  450,
		IssueDate:      base,
		MaturityDate:   base.AddDate(5, 0, 0),
		CouponsPerYear: FrequencySemiAnnual,
		TotalUnits:     5000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), registered.ID)
}

func TestRedeemHolding_PayoutOverflow(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	store := &seededTreasuryStore{
		securities: []Security{
			{
				ID: 1, CUSIP: "912828XG0", Issuer: "US Treasury", FaceValue: 1 << 62,
				CouponRateBps: 425, IssueDate: base, MaturityDate: base.AddDate(1, 0, 0),
				CouponsPerYear: FrequencySemiAnnual, TotalUnits: 8, SoldUnits: 8,
				Status: StatusMatured, CreatedAt: base, UpdatedAt: base,
			},
		},
		holdings: []Holding{
			{AccountUUID: investorUUID, SecurityID: 1, Units: 8, AcquiredAt: base},
		},
	}

	svc, err := NewServiceFromStore(context.Background(), roleTable{}, store, events.NopPublisher{})
	require.NoError(t, err)

	// 8 units at 2^62 face value does not fit in uint64.
	_, err = svc.RedeemHolding(context.Background(), investorUUID, 1)
	require.ErrorIs(t, err, numeric.ErrOverflow)

	// The holding is untouched after the failed redemption.
	require.Equal(t, uint64(8), svc.HoldingOf(investorUUID, 1))
}
