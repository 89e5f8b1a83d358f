package vault

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"primevault/pkg/access"
	"primevault/pkg/claimtoken"
	"primevault/pkg/events"
	"primevault/pkg/oracle"
	"primevault/pkg/shares"
)

const operatorID = "vault-core"

// Test actors.
const (
	ownerUUID     = "owner-1"
	govUUID       = "gov-1"
	appraiserUUID = "appraiser-1"
	custMgrUUID   = "custmgr-1"
	emergencyUUID = "emergency-1"
	custodianUUID = "custodian-1"
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

type stubOracle struct {
	price    uint64
	priceErr error
	valid    bool
}

func (o *stubOracle) GetPrice(ctx context.Context, assetType string) (oracle.Quote, error) {
	if o.priceErr != nil {
		return oracle.Quote{}, o.priceErr
	}
	return oracle.Quote{AssetType: assetType, Price: o.price, UpdatedAt: time.Now(), Source: "manual"}, nil
}

func (o *stubOracle) ValidatePrice(ctx context.Context, assetType string, proposed uint64) (bool, error) {
	return o.valid, nil
}

func (o *stubOracle) SetManualPrice(ctx context.Context, callerUUID, assetType string, price uint64) error {
	return nil
}

func (o *stubOracle) AddPriceFeed(ctx context.Context, callerUUID, assetType string, feed oracle.PriceFeed) error {
	return nil
}

func (o *stubOracle) RemovePriceFeed(ctx context.Context, callerUUID, assetType string) error {
	return nil
}

func (o *stubOracle) ListQuotes(ctx context.Context) []oracle.Quote { return nil }

type recordingAlerter struct {
	mu          sync.Mutex
	marginCalls []int64
	withdrawals []uint64
}

func (a *recordingAlerter) MarginCall(assetID int64, oldValue, newValue uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marginCalls = append(a.marginCalls, assetID)
	return nil
}

func (a *recordingAlerter) FeesWithdrawn(amount uint64, toUUID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.withdrawals = append(a.withdrawals, amount)
	return nil
}

type fixture struct {
	svc    Service
	raw    *service
	claims claimtoken.Ledger
	shares shares.Ledger
	oracle *stubOracle
	alerts *recordingAlerter
	base   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	roles := roleTable{
		govUUID:       {access.RoleGovernance},
		appraiserUUID: {access.RoleAppraiser},
		custMgrUUID:   {access.RoleCustodianManager},
		emergencyUUID: {access.RoleEmergency},
	}
	claims := claimtoken.NewLedger([]string{operatorID}, nil, events.NopPublisher{})
	shareLedger := shares.NewLedger([]string{operatorID}, nil, events.NopPublisher{})
	prices := &stubOracle{valid: true}
	alerter := &recordingAlerter{}

	svc := NewService(operatorID, roles, claims, shareLedger, prices, nil, events.NopPublisher{}, alerter)
	raw := svc.(*service)
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	raw.now = func() time.Time { return base }

	return &fixture{
		svc:    svc,
		raw:    raw,
		claims: claims,
		shares: shareLedger,
		oracle: prices,
		alerts: alerter,
		base:   base,
	}
}

func (f *fixture) setNow(t *testing.T, at time.Time) {
	t.Helper()
	f.raw.now = func() time.Time { return at }
}

// approvedCustodian registers a custodian as the custodian manager.
func (f *fixture) approvedCustodian(t *testing.T) int64 {
	t.Helper()
	custodian, err := f.svc.ApproveCustodian(context.Background(), custMgrUUID, custodianUUID, "Vault Depository", "cert-hash")
	require.NoError(t, err)
	return custodian.ID
}

// certifiedAppraiser certifies the appraiser actor via governance.
func (f *fixture) certifiedAppraiser(t *testing.T) int64 {
	t.Helper()
	appraiser, err := f.svc.CertifyAppraiser(context.Background(), govUUID, appraiserUUID, f.base.AddDate(2, 0, 0))
	require.NoError(t, err)
	return appraiser.ID
}

// depositedAsset deposits a precious-metals asset for the owner.
func (f *fixture) depositedAsset(t *testing.T, custodianID int64, value uint64) int64 {
	t.Helper()
	asset, err := f.svc.DepositAsset(context.Background(), ownerUUID, DepositInput{
		Category:       CategoryPreciousMetals,
		Description:    "gold bars",
		SerialHash:     "serial-1",
		CustodianID:    custodianID,
		EstimatedValue: value,
	})
	require.NoError(t, err)
	return asset.ID
}

// tokenizedAsset walks an asset through deposit, verify and tokenize at 1:1.
func (f *fixture) tokenizedAsset(t *testing.T, value uint64) (int64, uint64) {
	t.Helper()
	custodianID := f.approvedCustodian(t)
	f.certifiedAppraiser(t)
	assetID := f.depositedAsset(t, custodianID, value)
	_, err := f.svc.VerifyAsset(context.Background(), appraiserUUID, assetID, value, "doc-hash", "US-NY")
	require.NoError(t, err)
	minted, err := f.svc.TokenizeAsset(context.Background(), ownerUUID, assetID, MinCollateralRatioBps)
	require.NoError(t, err)
	return assetID, minted
}

func TestDepositAsset(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)

	assetID := f.depositedAsset(t, custodianID, 60000)

	asset, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingVerification, asset.Status)
	require.Equal(t, ownerUUID, asset.OwnerUUID)
	require.Equal(t, uint64(60000), asset.AppraisedValue)
	require.False(t, asset.Locked)

	custodian, err := f.svc.GetCustodian(custodianID)
	require.NoError(t, err)
	require.Equal(t, int64(1), custodian.AssetCount)
}

func TestDepositAsset_Preconditions(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	ctx := context.Background()

	_, err := f.svc.DepositAsset(ctx, ownerUUID, DepositInput{Category: "fine-wine", SerialHash: "s", CustodianID: custodianID, EstimatedValue: 1})
	require.ErrorIs(t, err, ErrInvalidCategory)

	_, err = f.svc.DepositAsset(ctx, ownerUUID, DepositInput{Category: CategoryVehicles, SerialHash: "s", CustodianID: custodianID, EstimatedValue: 0})
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = f.svc.DepositAsset(ctx, ownerUUID, DepositInput{Category: CategoryVehicles, SerialHash: "s", CustodianID: 99, EstimatedValue: 1})
	require.ErrorIs(t, err, ErrCustodianNotFound)

	require.NoError(t, f.svc.RevokeCustodian(ctx, custMgrUUID, custodianID))
	_, err = f.svc.DepositAsset(ctx, ownerUUID, DepositInput{Category: CategoryVehicles, SerialHash: "s", CustodianID: custodianID, EstimatedValue: 1})
	require.ErrorIs(t, err, ErrCustodianNotApproved)
}

func TestVerifyAsset_RequiresCertifiedAppraiser(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	assetID := f.depositedAsset(t, custodianID, 60000)
	ctx := context.Background()

	// Role without a certification record is not enough.
	_, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "", "")
	require.ErrorIs(t, err, ErrAppraiserNotCertified)

	// No role at all.
	_, err = f.svc.VerifyAsset(ctx, ownerUUID, assetID, 60000, "", "")
	require.ErrorIs(t, err, access.ErrNotAuthorized)

	f.certifiedAppraiser(t)
	asset, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 65000, "doc", "US-NY")
	require.NoError(t, err)
	require.Equal(t, StatusVerified, asset.Status)
	require.Equal(t, uint64(65000), asset.AppraisedValue)
	require.True(t, asset.TitleVerified)
}

// Lifecycle monotonicity: operations fail from out-of-order states.
func TestLifecycleMonotonicity(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	f.certifiedAppraiser(t)
	assetID := f.depositedAsset(t, custodianID, 60000)
	ctx := context.Background()

	// Tokenizing a pending asset fails.
	_, err := f.svc.TokenizeAsset(ctx, ownerUUID, assetID, MinCollateralRatioBps)
	require.ErrorIs(t, err, ErrInvalidStatus)

	// Fractionalizing and redeeming before tokenization fail.
	_, err = f.svc.FractionalizeAsset(ctx, ownerUUID, assetID, 100)
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.svc.RedeemAsset(ctx, ownerUUID, assetID)
	require.ErrorIs(t, err, ErrInvalidStatus)

	// Verifying twice fails.
	_, err = f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "", "")
	require.NoError(t, err)
	_, err = f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "", "")
	require.ErrorIs(t, err, ErrInvalidStatus)

	// Liquidating a merely verified asset fails.
	_, err = f.svc.LiquidateAsset(ctx, govUUID, assetID, 60000)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTokenizeAsset_MintsNetOfFee(t *testing.T) {
	f := newFixture(t)
	assetID, minted := f.tokenizedAsset(t, 60000)

	// 1:1 ratio, 1% tokenization fee: 60000 gross, 600 fee, 59400 net.
	require.Equal(t, uint64(59400), minted)
	require.Equal(t, uint64(59400), f.claims.BalanceOf(ownerUUID))

	asset, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	require.Equal(t, StatusTokenized, asset.Status)
	require.True(t, asset.Locked)
	require.Equal(t, uint64(59400), asset.ClaimsIssued)

	stats := f.svc.Stats()
	require.Equal(t, uint64(60000), stats.TotalValueLocked)
	require.Equal(t, uint64(59400), stats.TotalClaimsIssued)
	require.Equal(t, uint64(600), stats.FeesCollected)
}

func TestTokenizeAsset_Overcollateralized(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	f.certifiedAppraiser(t)
	assetID := f.depositedAsset(t, custodianID, 60000)
	ctx := context.Background()
	_, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "", "")
	require.NoError(t, err)

	// 150% ratio: gross 40000, fee 400, net 39600.
	minted, err := f.svc.TokenizeAsset(ctx, ownerUUID, assetID, 15000)
	require.NoError(t, err)
	require.Equal(t, uint64(39600), minted)
}

func TestTokenizeAsset_Preconditions(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	f.certifiedAppraiser(t)
	assetID := f.depositedAsset(t, custodianID, 60000)
	ctx := context.Background()
	_, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "", "")
	require.NoError(t, err)

	_, err = f.svc.TokenizeAsset(ctx, ownerUUID, assetID, 9999)
	require.ErrorIs(t, err, ErrRatioTooLow)

	_, err = f.svc.TokenizeAsset(ctx, "stranger", assetID, MinCollateralRatioBps)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestFractionalizeAsset(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 10_000_000)
	ctx := context.Background()

	classID, err := f.svc.FractionalizeAsset(ctx, ownerUUID, assetID, 1000)
	require.NoError(t, err)

	class, err := f.shares.GetClass(classID)
	require.NoError(t, err)
	require.Equal(t, uint64(10000), class.ShareValue)
	require.Equal(t, uint64(1000), f.shares.BalanceOf(ownerUUID, classID))

	asset, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	require.Equal(t, StatusFractionalized, asset.Status)
	require.True(t, asset.Fractionalized)
	require.Equal(t, classID, asset.ShareClassID)

	// Full redemption is permanently unavailable afterwards.
	_, err = f.svc.RedeemAsset(ctx, ownerUUID, assetID)
	require.ErrorIs(t, err, ErrFractionalized)

	// And a second fractionalization is rejected.
	_, err = f.svc.FractionalizeAsset(ctx, ownerUUID, assetID, 500)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFractionalizeAsset_ShareCountBounds(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 10_000_000)
	ctx := context.Background()

	_, err := f.svc.FractionalizeAsset(ctx, ownerUUID, assetID, 1)
	require.ErrorIs(t, err, shares.ErrInvalidShareCount)

	_, err = f.svc.FractionalizeAsset(ctx, ownerUUID, assetID, 10001)
	require.ErrorIs(t, err, shares.ErrInvalidShareCount)
}

func TestRedeemAsset_FullBalance(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)
	ctx := context.Background()

	asset, err := f.svc.RedeemAsset(ctx, ownerUUID, assetID)
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, asset.Status)
	require.False(t, asset.Locked)
	require.Equal(t, uint64(0), asset.ClaimsIssued)
	require.Equal(t, ownerUUID, asset.OwnerUUID)

	require.Equal(t, uint64(0), f.claims.BalanceOf(ownerUUID))

	stats := f.svc.Stats()
	require.Equal(t, uint64(0), stats.TotalValueLocked)
	require.Equal(t, uint64(0), stats.TotalClaimsIssued)
	// Tokenization fee 600 plus 1% redemption fee on the 59400 issued.
	require.Equal(t, uint64(600+594), stats.FeesCollected)
}

// A transferred-in holder with the full issued amount can redeem and becomes
// the recorded owner.
func TestRedeemAsset_TransfereeRedeems(t *testing.T) {
	f := newFixture(t)
	assetID, minted := f.tokenizedAsset(t, 60000)
	ctx := context.Background()

	require.NoError(t, f.claims.Transfer(ownerUUID, "buyer", minted))

	asset, err := f.svc.RedeemAsset(ctx, "buyer", assetID)
	require.NoError(t, err)
	require.Equal(t, "buyer", asset.OwnerUUID)
}

func TestRedeemAsset_PartialBalanceRejectedWithoutStateChange(t *testing.T) {
	f := newFixture(t)
	assetID, minted := f.tokenizedAsset(t, 60000)
	ctx := context.Background()

	// Owner gives away half, then tries to redeem.
	require.NoError(t, f.claims.Transfer(ownerUUID, "buyer", minted/2))

	before, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	statsBefore := f.svc.Stats()

	_, err = f.svc.RedeemAsset(ctx, ownerUUID, assetID)
	require.ErrorIs(t, err, ErrInsufficientClaims)

	after, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, statsBefore, f.svc.Stats())
	require.Equal(t, minted-minted/2, f.claims.BalanceOf(ownerUUID))
}

func TestLiquidateAsset_DeviationGate(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)
	ctx := context.Background()

	f.oracle.valid = false
	_, err := f.svc.LiquidateAsset(ctx, govUUID, assetID, 40000)
	require.ErrorIs(t, err, ErrPriceDeviation)

	asset, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	require.Equal(t, StatusTokenized, asset.Status, "rejected liquidation leaves state untouched")

	f.oracle.valid = true
	asset, err = f.svc.LiquidateAsset(ctx, govUUID, assetID, 58000)
	require.NoError(t, err)
	require.Equal(t, StatusLiquidating, asset.Status)
	require.False(t, asset.Locked)

	stats := f.svc.Stats()
	require.Equal(t, uint64(0), stats.TotalValueLocked)
	// Tokenization fee 600 plus the 5% liquidation fee on the sale price.
	require.Equal(t, uint64(600+2900), stats.FeesCollected)

	// Claim tokens are not burned by liquidation.
	require.Equal(t, uint64(59400), f.claims.BalanceOf(ownerUUID))
}

func TestLiquidateAsset_GovernanceOnly(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)

	_, err := f.svc.LiquidateAsset(context.Background(), ownerUUID, assetID, 60000)
	require.ErrorIs(t, err, access.ErrNotAuthorized)
}

func TestReappraiseAsset_TooSoon(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)

	f.setNow(t, f.base.AddDate(0, 6, 0))
	_, err := f.svc.ReappraiseAsset(context.Background(), appraiserUUID, assetID)
	require.ErrorIs(t, err, ErrReappraisalTooSoon)
}

func TestReappraiseAsset_DropBelowThresholdDefaults(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)
	ctx := context.Background()

	// 25% drop, below the 80% threshold.
	f.oracle.price = 45000
	f.setNow(t, f.base.AddDate(1, 0, 1))

	asset, err := f.svc.ReappraiseAsset(ctx, appraiserUUID, assetID)
	require.NoError(t, err)
	require.Equal(t, StatusDefaulted, asset.Status)
	require.Equal(t, uint64(45000), asset.AppraisedValue)

	stats := f.svc.Stats()
	require.Equal(t, uint64(45000), stats.TotalValueLocked)
	require.Equal(t, uint64(45000), f.claims.Stats().TotalCollateralValue)

	require.Equal(t, []int64{assetID}, f.alerts.marginCalls)

	// A defaulted asset can still be liquidated.
	_, err = f.svc.LiquidateAsset(ctx, govUUID, assetID, 44000)
	require.NoError(t, err)
}

func TestReappraiseAsset_ModerateDropStaysTokenized(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)

	// 10% drop, above the 80% threshold.
	f.oracle.price = 54000
	f.setNow(t, f.base.AddDate(1, 0, 1))

	asset, err := f.svc.ReappraiseAsset(context.Background(), appraiserUUID, assetID)
	require.NoError(t, err)
	require.Equal(t, StatusTokenized, asset.Status)
	require.Empty(t, f.alerts.marginCalls)
}

func TestReappraiseAsset_OracleFailureAborts(t *testing.T) {
	f := newFixture(t)
	assetID, _ := f.tokenizedAsset(t, 60000)

	f.oracle.priceErr = oracle.ErrNoPrice
	f.setNow(t, f.base.AddDate(1, 0, 1))

	_, err := f.svc.ReappraiseAsset(context.Background(), appraiserUUID, assetID)
	require.ErrorIs(t, err, oracle.ErrNoPrice)

	asset, err := f.svc.GetAsset(assetID)
	require.NoError(t, err)
	require.Equal(t, uint64(60000), asset.AppraisedValue)
}

func TestWithdrawFees_AtomicReadThenZero(t *testing.T) {
	f := newFixture(t)
	f.tokenizedAsset(t, 60000)
	ctx := context.Background()

	amount, err := f.svc.WithdrawFees(ctx, govUUID)
	require.NoError(t, err)
	require.Equal(t, uint64(600), amount)
	require.Equal(t, uint64(0), f.svc.Stats().FeesCollected)
	require.Equal(t, []uint64{600}, f.alerts.withdrawals)

	amount, err = f.svc.WithdrawFees(ctx, govUUID)
	require.NoError(t, err)
	require.Equal(t, uint64(0), amount)

	_, err = f.svc.WithdrawFees(ctx, ownerUUID)
	require.ErrorIs(t, err, access.ErrNotAuthorized)
}

func TestUpdateFeeRates_Bounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.UpdateFeeRates(ctx, govUUID, FeeRates{TokenizationBps: 501})
	require.ErrorIs(t, err, ErrInvalidFeeRates)

	err = f.svc.UpdateFeeRates(ctx, govUUID, FeeRates{TokenizationBps: 500, CustodyBps: 200, TransactionBps: 100, RedemptionBps: 500})
	require.NoError(t, err)
	require.Equal(t, uint64(500), f.svc.CurrentFeeRates().TokenizationBps)
}

func TestPause_BlocksMutations(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Pause(ctx, ownerUUID), access.ErrNotAuthorized)
	require.NoError(t, f.svc.Pause(ctx, emergencyUUID))

	_, err := f.svc.DepositAsset(ctx, ownerUUID, DepositInput{Category: CategoryVehicles, SerialHash: "s", CustodianID: custodianID, EstimatedValue: 1})
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.svc.WithdrawFees(ctx, govUUID)
	require.ErrorIs(t, err, ErrPaused)

	// Reads still work while paused.
	_, err = f.svc.GetCustodian(custodianID)
	require.NoError(t, err)
	require.True(t, f.svc.Stats().Paused)

	require.NoError(t, f.svc.Unpause(ctx, emergencyUUID))
	f.depositedAsset(t, custodianID, 100)
}

func TestRevokeCustodian_RequiresZeroAssets(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	f.depositedAsset(t, custodianID, 100)
	ctx := context.Background()

	err := f.svc.RevokeCustodian(ctx, custMgrUUID, custodianID)
	require.ErrorIs(t, err, ErrCustodianHasAssets)
}

func TestApproveCustodian_DuplicateAndReapproval(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	ctx := context.Background()

	_, err := f.svc.ApproveCustodian(ctx, custMgrUUID, custodianUUID, "Vault Depository", "cert-hash")
	require.ErrorIs(t, err, ErrCustodianExists)

	require.NoError(t, f.svc.RevokeCustodian(ctx, custMgrUUID, custodianID))

	// Re-approval reuses the record and the ID.
	custodian, err := f.svc.ApproveCustodian(ctx, custMgrUUID, custodianUUID, "Vault Depository", "cert-hash-2")
	require.NoError(t, err)
	require.Equal(t, custodianID, custodian.ID)
	require.True(t, custodian.Approved)
}

func TestRevokeAppraiser(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	appraiserID := f.certifiedAppraiser(t)
	assetID := f.depositedAsset(t, custodianID, 100)
	ctx := context.Background()

	require.NoError(t, f.svc.RevokeAppraiser(ctx, govUUID, appraiserID))

	_, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 100, "", "")
	require.ErrorIs(t, err, ErrAppraiserNotCertified)
}

func TestVerifyAsset_ExpiredCertification(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	f.certifiedAppraiser(t)
	assetID := f.depositedAsset(t, custodianID, 60000)
	ctx := context.Background()

	// The certification runs to base+2y; the expiry instant itself is out.
	f.setNow(t, f.base.AddDate(2, 0, 0))
	_, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "", "")
	require.ErrorIs(t, err, ErrAppraiserNotCertified)

	// Re-certifying with a fresh expiry restores the appraiser.
	_, err = f.svc.CertifyAppraiser(ctx, govUUID, appraiserUUID, f.base.AddDate(4, 0, 0))
	require.NoError(t, err)
	asset, err := f.svc.VerifyAsset(ctx, appraiserUUID, assetID, 60000, "doc", "US-NY")
	require.NoError(t, err)
	require.Equal(t, StatusVerified, asset.Status)
}

func TestListAssets_FiltersAndPagination(t *testing.T) {
	f := newFixture(t)
	custodianID := f.approvedCustodian(t)
	for i := 0; i < 5; i++ {
		f.depositedAsset(t, custodianID, 100)
	}
	_, err := f.svc.DepositAsset(context.Background(), "other-owner", DepositInput{
		Category: CategoryVehicles, SerialHash: "s", CustodianID: custodianID, EstimatedValue: 100,
	})
	require.NoError(t, err)

	owner := ownerUUID
	items, total := f.svc.ListAssets(AssetFilters{OwnerUUID: &owner}, 1, 3)
	require.Equal(t, int64(5), total)
	require.Len(t, items, 3)

	items, total = f.svc.ListAssets(AssetFilters{OwnerUUID: &owner}, 2, 3)
	require.Equal(t, int64(5), total)
	require.Len(t, items, 2)

	category := CategoryVehicles
	items, total = f.svc.ListAssets(AssetFilters{Category: &category}, 1, 10)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)
}

type seededRepository struct {
	assets     []Asset
	custodians []Custodian
	appraisers []Appraiser
	state      State
	hasState   bool

	mu          sync.Mutex
	savedStates []State
}

func (r *seededRepository) SaveAsset(context.Context, Asset) error         { return nil }
func (r *seededRepository) SaveCustodian(context.Context, Custodian) error { return nil }
func (r *seededRepository) SaveAppraiser(context.Context, Appraiser) error { return nil }

func (r *seededRepository) SaveState(_ context.Context, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedStates = append(r.savedStates, state)
	return nil
}

func (r *seededRepository) LoadAssets(context.Context) ([]Asset, error) { return r.assets, nil }
func (r *seededRepository) LoadCustodians(context.Context) ([]Custodian, error) {
	return r.custodians, nil
}
func (r *seededRepository) LoadAppraisers(context.Context) ([]Appraiser, error) {
	return r.appraisers, nil
}

func (r *seededRepository) LoadState(context.Context) (State, bool, error) {
	return r.state, r.hasState, nil
}

func restoredRepository() *seededRepository {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	return &seededRepository{
		assets: []Asset{
			{
				ID: 7, Category: CategoryPreciousMetals, OwnerUUID: ownerUUID,
				SerialHash: "sha256:bar07", AppraisedValue: 60000, LastAppraisalAt: base,
				ClaimsIssued: 59400, CollateralRatio: 10000, Locked: true,
				CustodianID: 2, TitleVerified: true, Status: StatusTokenized,
				CreatedAt: base, UpdatedAt: base,
			},
		},
		custodians: []Custodian{
			{ID: 2, AccountUUID: custodianUUID, Name: "Brinks Geneva", Approved: true,
				AssetCount: 1, TotalValue: 60000, ReputationScore: 100, CreatedAt: base, UpdatedAt: base},
		},
		appraisers: []Appraiser{
			{ID: 5, AccountUUID: appraiserUUID, Certified: true,
				CertificationExpiry: base.AddDate(1, 0, 0), CreatedAt: base, UpdatedAt: base},
		},
		state: State{
			FeesCollected: 600,
			FeeRates:      FeeRates{TokenizationBps: 200, CustodyBps: 50, TransactionBps: 25, RedemptionBps: 100},
		},
		hasState: true,
	}
}

func TestNewServiceFromStore_RestoresRegistries(t *testing.T) {
	repo := restoredRepository()
	roles := roleTable{custMgrUUID: {access.RoleCustodianManager}}
	claims := claimtoken.NewLedger([]string{operatorID}, nil, events.NopPublisher{})
	shareLedger := shares.NewLedger([]string{operatorID}, nil, events.NopPublisher{})

	svc, err := NewServiceFromStore(context.Background(), operatorID, roles, claims, shareLedger,
		&stubOracle{valid: true}, repo, events.NopPublisher{}, &recordingAlerter{})
	require.NoError(t, err)

	asset, err := svc.GetAsset(7)
	require.NoError(t, err)
	require.Equal(t, StatusTokenized, asset.Status)
	require.True(t, asset.Locked)

	stats := svc.Stats()
	require.Equal(t, uint64(60000), stats.TotalValueLocked)
	require.Equal(t, uint64(59400), stats.TotalClaimsIssued)
	require.Equal(t, uint64(600), stats.FeesCollected)
	require.Equal(t, uint64(200), svc.CurrentFeeRates().TokenizationBps)

	// Collateral pushed back into the claim ledger on restore.
	require.Equal(t, uint64(60000), claims.Stats().TotalCollateralValue)

	// Existing custodian UUIDs stay indexed.
	_, err = svc.ApproveCustodian(context.Background(), custMgrUUID, custodianUUID, "Brinks Geneva", "")
	require.ErrorIs(t, err, ErrCustodianExists)
}

func TestNewServiceFromStore_IDsNeverReused(t *testing.T) {
	repo := restoredRepository()
	roles := roleTable{
		custMgrUUID: {access.RoleCustodianManager},
		govUUID:     {access.RoleGovernance},
	}
	claims := claimtoken.NewLedger([]string{operatorID}, nil, events.NopPublisher{})
	shareLedger := shares.NewLedger([]string{operatorID}, nil, events.NopPublisher{})

	svc, err := NewServiceFromStore(context.Background(), operatorID, roles, claims, shareLedger,
		&stubOracle{valid: true}, repo, events.NopPublisher{}, &recordingAlerter{})
	require.NoError(t, err)

	deposited, err := svc.DepositAsset(context.Background(), ownerUUID, DepositInput{
		Category:       CategoryVehicles,
		SerialHash:     "sha256:vin01",
		CustodianID:    2,
		EstimatedValue: 30000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(8), deposited.ID, "asset IDs resume after the highest persisted ID")

	custodian, err := svc.ApproveCustodian(context.Background(), custMgrUUID, "custodian-2", "Loomis Zurich", "")
	require.NoError(t, err)
	require.Equal(t, int64(3), custodian.ID)

	appraiser, err := svc.CertifyAppraiser(context.Background(), govUUID, "appraiser-2", time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Equal(t, int64(6), appraiser.ID)
}

func TestNewServiceFromStore_RestoresPauseFlag(t *testing.T) {
	repo := restoredRepository()
	repo.state.Paused = true

	claims := claimtoken.NewLedger([]string{operatorID}, nil, events.NopPublisher{})
	shareLedger := shares.NewLedger([]string{operatorID}, nil, events.NopPublisher{})

	svc, err := NewServiceFromStore(context.Background(), operatorID, roleTable{}, claims, shareLedger,
		&stubOracle{valid: true}, repo, events.NopPublisher{}, &recordingAlerter{})
	require.NoError(t, err)

	_, err = svc.DepositAsset(context.Background(), ownerUUID, DepositInput{
		Category:       CategoryPreciousMetals,
		SerialHash:     "sha256:bar08",
		CustodianID:    2,
		EstimatedValue: 1000,
	})
	require.ErrorIs(t, err, ErrPaused)
}

func TestWithdrawFees_PersistsState(t *testing.T) {
	repo := restoredRepository()
	roles := roleTable{govUUID: {access.RoleGovernance}}
	claims := claimtoken.NewLedger([]string{operatorID}, nil, events.NopPublisher{})
	shareLedger := shares.NewLedger([]string{operatorID}, nil, events.NopPublisher{})

	svc, err := NewServiceFromStore(context.Background(), operatorID, roles, claims, shareLedger,
		&stubOracle{valid: true}, repo, events.NopPublisher{}, &recordingAlerter{})
	require.NoError(t, err)

	amount, err := svc.WithdrawFees(context.Background(), govUUID)
	require.NoError(t, err)
	require.Equal(t, uint64(600), amount)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.NotEmpty(t, repo.savedStates)
	require.Equal(t, uint64(0), repo.savedStates[len(repo.savedStates)-1].FeesCollected)
}
