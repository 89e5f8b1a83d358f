package vault

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"primevault/pkg/access"
	"primevault/pkg/alerts"
	"primevault/pkg/claimtoken"
	"primevault/pkg/events"
	"primevault/pkg/numeric"
	"primevault/pkg/oracle"
	"primevault/pkg/shares"
)

var (
	ErrPaused                = errors.New("vault is paused")
	ErrAssetNotFound         = errors.New("asset not found")
	ErrCustodianNotFound     = errors.New("custodian not found")
	ErrAppraiserNotFound     = errors.New("appraiser not found")
	ErrCustodianNotApproved  = errors.New("custodian is not approved")
	ErrCustodianHasAssets    = errors.New("custodian still holds assets")
	ErrCustodianExists       = errors.New("custodian already approved")
	ErrAppraiserNotCertified = errors.New("caller is not a certified appraiser")
	ErrInvalidCategory       = errors.New("invalid asset category")
	ErrInvalidValue          = errors.New("value must be positive")
	ErrInvalidStatus         = errors.New("operation not allowed in current asset status")
	ErrNotOwner              = errors.New("caller is not the asset owner")
	ErrRatioTooLow           = errors.New("collateral ratio below 1:1 minimum")
	ErrAlreadyLocked         = errors.New("asset collateral already locked")
	ErrAlreadyFractionalized = errors.New("asset already fractionalized")
	ErrFractionalized        = errors.New("fractionalized assets cannot be redeemed")
	ErrNotLocked             = errors.New("asset collateral is not locked")
	ErrInsufficientClaims    = errors.New("caller balance below issued claim amount")
	ErrPriceDeviation        = errors.New("sale price deviates more than 20% from oracle reference")
	ErrReappraisalTooSoon    = errors.New("asset was appraised less than a year ago")
	ErrInvalidFeeRates       = errors.New("fee rates exceed allowed bounds")
)

// DepositInput carries the caller-supplied fields of a new asset.
type DepositInput struct {
	Category          string
	Description       string
	SerialHash        string
	CustodianID       int64
	EstimatedValue    uint64
	InsuranceProvider string
	InsuranceValue    uint64
}

// Service is the vault core: the asset lifecycle state machine, fee
// accounting and global aggregates. It orchestrates the two ledgers and the
// oracle; state mutations are serialized under a single mutex, which also
// acts as the re-entrancy guard.
type Service interface {
	DepositAsset(ctx context.Context, callerUUID string, in DepositInput) (Asset, error)
	VerifyAsset(ctx context.Context, callerUUID string, assetID int64, appraisedValue uint64, legalDocHash, jurisdiction string) (Asset, error)
	TokenizeAsset(ctx context.Context, callerUUID string, assetID int64, collateralRatioBps uint64) (uint64, error)
	FractionalizeAsset(ctx context.Context, callerUUID string, assetID int64, numShares uint64) (int64, error)
	RedeemAsset(ctx context.Context, callerUUID string, assetID int64) (Asset, error)
	LiquidateAsset(ctx context.Context, callerUUID string, assetID int64, salePrice uint64) (Asset, error)
	ReappraiseAsset(ctx context.Context, callerUUID string, assetID int64) (Asset, error)

	ApproveCustodian(ctx context.Context, callerUUID, accountUUID, name, certificationHash string) (Custodian, error)
	RevokeCustodian(ctx context.Context, callerUUID string, custodianID int64) error
	CertifyAppraiser(ctx context.Context, callerUUID, accountUUID string, expiry time.Time) (Appraiser, error)
	RevokeAppraiser(ctx context.Context, callerUUID string, appraiserID int64) error

	WithdrawFees(ctx context.Context, callerUUID string) (uint64, error)
	UpdateFeeRates(ctx context.Context, callerUUID string, rates FeeRates) error
	Pause(ctx context.Context, callerUUID string) error
	Unpause(ctx context.Context, callerUUID string) error

	GetAsset(assetID int64) (Asset, error)
	ListAssets(filters AssetFilters, page, limit int) ([]Asset, int64)
	GetCustodian(custodianID int64) (Custodian, error)
	ListCustodians() []Custodian
	ListAppraisers() []Appraiser
	CurrentFeeRates() FeeRates
	Stats() Stats
}

type service struct {
	mu sync.Mutex

	assets          map[int64]*Asset
	custodians      map[int64]*Custodian
	custodianByUUID map[string]int64
	appraisers      map[int64]*Appraiser
	appraiserByUUID map[string]int64

	nextAssetID     int64
	nextCustodianID int64
	nextAppraiserID int64

	totalValueLocked  uint64
	totalClaimsIssued uint64
	feesCollected     uint64
	feeRates          FeeRates
	paused            bool

	operatorID string
	roles      access.Checker
	claims     claimtoken.Ledger
	shares     shares.Ledger
	prices     oracle.Service
	repo       Repository // optional write-behind registry persistence
	pub        events.Publisher
	alert      alerts.Alerter

	now func() time.Time
}

// NewService wires the vault core. operatorID is the ledger-operator
// identity under which the vault mints and burns.
func NewService(operatorID string, roles access.Checker, claims claimtoken.Ledger, sharesLedger shares.Ledger, prices oracle.Service, repo Repository, pub events.Publisher, alert alerts.Alerter) Service {
	return &service{
		assets:          make(map[int64]*Asset),
		custodians:      make(map[int64]*Custodian),
		custodianByUUID: make(map[string]int64),
		appraisers:      make(map[int64]*Appraiser),
		appraiserByUUID: make(map[string]int64),
		nextAssetID:     1,
		nextCustodianID: 1,
		nextAppraiserID: 1,
		feeRates: FeeRates{
			TokenizationBps: 100,
			CustodyBps:      50,
			TransactionBps:  25,
			RedemptionBps:   100,
		},
		operatorID: operatorID,
		roles:      roles,
		claims:     claims,
		shares:     sharesLedger,
		prices:     prices,
		repo:       repo,
		pub:        pub,
		alert:      alert,
		now:        time.Now,
	}
}

// NewServiceFromStore builds a Service preloaded with the persisted
// registries and bookkeeping state. ID counters resume after the highest
// persisted ID so identifiers are never reused across restarts; the
// aggregate collateral figure is pushed back into the claim ledger.
func NewServiceFromStore(ctx context.Context, operatorID string, roles access.Checker, claims claimtoken.Ledger, sharesLedger shares.Ledger, prices oracle.Service, repo Repository, pub events.Publisher, alert alerts.Alerter) (Service, error) {
	s := NewService(operatorID, roles, claims, sharesLedger, prices, repo, pub, alert).(*service)
	if repo == nil {
		return s, nil
	}

	assets, err := repo.LoadAssets(ctx)
	if err != nil {
		return nil, err
	}
	custodians, err := repo.LoadCustodians(ctx)
	if err != nil {
		return nil, err
	}
	appraisers, err := repo.LoadAppraisers(ctx)
	if err != nil {
		return nil, err
	}
	state, found, err := repo.LoadState(ctx)
	if err != nil {
		return nil, err
	}

	for i := range assets {
		asset := assets[i]
		s.assets[asset.ID] = &asset
		if asset.ID >= s.nextAssetID {
			s.nextAssetID = asset.ID + 1
		}
		if asset.Locked {
			s.totalValueLocked += asset.AppraisedValue
			s.totalClaimsIssued += asset.ClaimsIssued
		}
	}
	for i := range custodians {
		custodian := custodians[i]
		s.custodians[custodian.ID] = &custodian
		s.custodianByUUID[custodian.AccountUUID] = custodian.ID
		if custodian.ID >= s.nextCustodianID {
			s.nextCustodianID = custodian.ID + 1
		}
	}
	for i := range appraisers {
		appraiser := appraisers[i]
		s.appraisers[appraiser.ID] = &appraiser
		s.appraiserByUUID[appraiser.AccountUUID] = appraiser.ID
		if appraiser.ID >= s.nextAppraiserID {
			s.nextAppraiserID = appraiser.ID + 1
		}
	}
	if found {
		s.feesCollected = state.FeesCollected
		s.feeRates = state.FeeRates
		s.paused = state.Paused
	}

	if s.totalValueLocked > 0 {
		if err := claims.UpdateCollateralValue(operatorID, s.totalValueLocked); err != nil {
			log.Printf("collateral restore push failed: %v", err)
		}
	}
	return s, nil
}

func (s *service) DepositAsset(ctx context.Context, callerUUID string, in DepositInput) (Asset, error) {
	if !IsValidCategory(in.Category) {
		return Asset{}, ErrInvalidCategory
	}
	if in.EstimatedValue == 0 {
		return Asset{}, ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Asset{}, ErrPaused
	}

	custodian, ok := s.custodians[in.CustodianID]
	if !ok {
		return Asset{}, ErrCustodianNotFound
	}
	if !custodian.Approved {
		return Asset{}, ErrCustodianNotApproved
	}

	now := s.now()
	id := s.nextAssetID
	s.nextAssetID++

	asset := &Asset{
		ID:                id,
		Category:          in.Category,
		OwnerUUID:         callerUUID,
		Description:       in.Description,
		SerialHash:        in.SerialHash,
		AppraisedValue:    in.EstimatedValue,
		CustodianID:       in.CustodianID,
		InsuranceProvider: in.InsuranceProvider,
		InsuranceValue:    in.InsuranceValue,
		Status:            StatusPendingVerification,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.assets[id] = asset
	custodian.AssetCount++
	custodian.UpdatedAt = now

	s.persistAsset(asset)
	s.persistCustodian(custodian)
	s.pub.Publish(events.KindAssetDeposited, id, map[string]any{
		"owner": callerUUID, "category": in.Category, "estimated_value": in.EstimatedValue,
	})
	return *asset, nil
}

func (s *service) VerifyAsset(ctx context.Context, callerUUID string, assetID int64, appraisedValue uint64, legalDocHash, jurisdiction string) (Asset, error) {
	if appraisedValue == 0 {
		return Asset{}, ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Asset{}, ErrPaused
	}
	appraiser, err := s.certifiedAppraiser(ctx, callerUUID)
	if err != nil {
		return Asset{}, err
	}

	asset, ok := s.assets[assetID]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	if asset.Status != StatusPendingVerification {
		return Asset{}, ErrInvalidStatus
	}

	now := s.now()
	asset.Status = StatusVerified
	asset.AppraisedValue = appraisedValue
	asset.LastAppraisalAt = now
	asset.AppraiserID = appraiser.ID
	asset.TitleVerified = true
	asset.LegalDocHash = legalDocHash
	asset.Jurisdiction = jurisdiction
	asset.UpdatedAt = now
	appraiser.AppraisalCount++
	appraiser.UpdatedAt = now

	s.persistAsset(asset)
	s.persistAppraiser(appraiser)
	s.pub.Publish(events.KindAssetVerified, assetID, map[string]any{
		"appraiser_id": appraiser.ID, "appraised_value": appraisedValue,
	})
	return *asset, nil
}

// TokenizeAsset locks the asset as collateral and mints the net claim amount
// to the owner. This is the single collateral-lock point of the lifecycle.
func (s *service) TokenizeAsset(ctx context.Context, callerUUID string, assetID int64, collateralRatioBps uint64) (uint64, error) {
	if collateralRatioBps < MinCollateralRatioBps {
		return 0, ErrRatioTooLow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return 0, ErrPaused
	}

	asset, ok := s.assets[assetID]
	if !ok {
		return 0, ErrAssetNotFound
	}
	if asset.OwnerUUID != callerUUID {
		return 0, ErrNotOwner
	}
	if asset.Status != StatusVerified {
		return 0, ErrInvalidStatus
	}
	if asset.Locked {
		return 0, ErrAlreadyLocked
	}

	gross, err := numeric.MulDiv(asset.AppraisedValue, numeric.BpsDenominator, collateralRatioBps)
	if err != nil {
		return 0, err
	}
	fee, err := numeric.ApplyBps(gross, s.feeRates.TokenizationBps)
	if err != nil {
		return 0, err
	}
	net := gross - fee

	// The mint is the last fallible step before the in-memory commit.
	if err := s.claims.Mint(s.operatorID, asset.OwnerUUID, net, assetID, asset.AppraisedValue); err != nil {
		return 0, err
	}

	now := s.now()
	asset.ClaimsIssued = net
	asset.CollateralRatio = collateralRatioBps
	asset.Locked = true
	asset.Status = StatusTokenized
	asset.UpdatedAt = now
	s.feesCollected += fee
	s.totalValueLocked += asset.AppraisedValue
	s.totalClaimsIssued += net

	if custodian, ok := s.custodians[asset.CustodianID]; ok {
		custodian.TotalValue += asset.AppraisedValue
		custodian.UpdatedAt = now
		s.persistCustodian(custodian)
	}

	s.persistAsset(asset)
	s.persistState()
	s.pub.Publish(events.KindAssetTokenized, assetID, map[string]any{
		"claims_minted": net, "fee": fee, "collateral_ratio_bps": collateralRatioBps,
	})
	return net, nil
}

// FractionalizeAsset divides a tokenized asset into a new share class. Full
// redemption becomes permanently unavailable afterwards.
func (s *service) FractionalizeAsset(ctx context.Context, callerUUID string, assetID int64, numShares uint64) (int64, error) {
	if numShares <= 1 || numShares > shares.MaxSharesPerClass {
		return 0, shares.ErrInvalidShareCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return 0, ErrPaused
	}

	asset, ok := s.assets[assetID]
	if !ok {
		return 0, ErrAssetNotFound
	}
	if asset.OwnerUUID != callerUUID {
		return 0, ErrNotOwner
	}
	if asset.Status != StatusTokenized {
		return 0, ErrInvalidStatus
	}
	if asset.Fractionalized {
		return 0, ErrAlreadyFractionalized
	}

	// Floor division; the truncation residue is an accepted rounding loss.
	shareValue := asset.AppraisedValue / numShares

	classID, err := s.shares.CreateShareClass(s.operatorID, assetID, numShares, shareValue, asset.Description)
	if err != nil {
		return 0, err
	}
	if err := s.shares.Mint(s.operatorID, asset.OwnerUUID, classID, numShares); err != nil {
		return 0, err
	}

	now := s.now()
	asset.Fractionalized = true
	asset.ShareClassID = classID
	asset.TotalShares = numShares
	asset.Status = StatusFractionalized
	asset.UpdatedAt = now

	s.persistAsset(asset)
	s.pub.Publish(events.KindAssetFractionalized, assetID, map[string]any{
		"share_class_id": classID, "total_shares": numShares, "share_value": shareValue,
	})
	return classID, nil
}

// RedeemAsset burns the full issued claim amount from the caller and releases
// the collateral lock. The caller must hold the entire issued amount; there
// is no proportional redemption.
func (s *service) RedeemAsset(ctx context.Context, callerUUID string, assetID int64) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Asset{}, ErrPaused
	}

	asset, ok := s.assets[assetID]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	if asset.Fractionalized {
		return Asset{}, ErrFractionalized
	}
	if asset.Status != StatusTokenized {
		return Asset{}, ErrInvalidStatus
	}
	if !asset.Locked {
		return Asset{}, ErrNotLocked
	}

	issued := asset.ClaimsIssued
	if s.claims.BalanceOf(callerUUID) < issued {
		return Asset{}, ErrInsufficientClaims
	}

	fee, err := numeric.ApplyBps(issued, s.feeRates.RedemptionBps)
	if err != nil {
		return Asset{}, err
	}

	if err := s.claims.BurnFrom(s.operatorID, callerUUID, issued, assetID); err != nil {
		return Asset{}, err
	}

	now := s.now()
	asset.Locked = false
	asset.Status = StatusRedeemed
	asset.OwnerUUID = callerUUID
	asset.ClaimsIssued = 0
	asset.UpdatedAt = now
	s.feesCollected += fee
	s.totalValueLocked = saturatingSub(s.totalValueLocked, asset.AppraisedValue)
	s.totalClaimsIssued = saturatingSub(s.totalClaimsIssued, issued)

	if custodian, ok := s.custodians[asset.CustodianID]; ok {
		custodian.AssetCount--
		custodian.TotalValue = saturatingSub(custodian.TotalValue, asset.AppraisedValue)
		custodian.UpdatedAt = now
		s.persistCustodian(custodian)
	}

	s.persistAsset(asset)
	s.persistState()
	s.pub.Publish(events.KindAssetRedeemed, assetID, map[string]any{
		"redeemer": callerUUID, "claims_burned": issued, "fee": fee,
	})
	return *asset, nil
}

// LiquidateAsset validates the sale price against the oracle reference and
// moves the asset into Liquidating. Claim tokens are not burned here and
// sale proceeds are not distributed; settlement finalization is a known gap
// carried over from the original accounting.
func (s *service) LiquidateAsset(ctx context.Context, callerUUID string, assetID int64, salePrice uint64) (Asset, error) {
	if salePrice == 0 {
		return Asset{}, ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Asset{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleGovernance); err != nil {
		return Asset{}, err
	}

	asset, ok := s.assets[assetID]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	if asset.Status != StatusTokenized && asset.Status != StatusDefaulted {
		return Asset{}, ErrInvalidStatus
	}

	withinBound, err := s.prices.ValidatePrice(ctx, asset.Category, salePrice)
	if err != nil {
		return Asset{}, err
	}
	if !withinBound {
		return Asset{}, ErrPriceDeviation
	}

	fee, err := numeric.ApplyBps(salePrice, LiquidationFeeBps)
	if err != nil {
		return Asset{}, err
	}

	now := s.now()
	asset.Locked = false
	asset.Status = StatusLiquidating
	asset.UpdatedAt = now
	s.feesCollected += fee
	s.totalValueLocked = saturatingSub(s.totalValueLocked, asset.AppraisedValue)
	s.totalClaimsIssued = saturatingSub(s.totalClaimsIssued, asset.ClaimsIssued)

	if custodian, ok := s.custodians[asset.CustodianID]; ok {
		custodian.AssetCount--
		custodian.TotalValue = saturatingSub(custodian.TotalValue, asset.AppraisedValue)
		custodian.UpdatedAt = now
		s.persistCustodian(custodian)
	}

	s.persistAsset(asset)
	s.persistState()
	s.pub.Publish(events.KindAssetLiquidated, assetID, map[string]any{
		"sale_price": salePrice, "fee": fee,
	})
	return *asset, nil
}

// ReappraiseAsset refreshes the appraised value from the oracle. A drop
// below 80% of the prior value defaults the asset.
func (s *service) ReappraiseAsset(ctx context.Context, callerUUID string, assetID int64) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Asset{}, ErrPaused
	}
	appraiser, err := s.certifiedAppraiser(ctx, callerUUID)
	if err != nil {
		return Asset{}, err
	}

	asset, ok := s.assets[assetID]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	if asset.Status != StatusTokenized {
		return Asset{}, ErrInvalidStatus
	}
	now := s.now()
	if now.Sub(asset.LastAppraisalAt) < ReappraisalInterval {
		return Asset{}, ErrReappraisalTooSoon
	}

	quote, err := s.prices.GetPrice(ctx, asset.Category)
	if err != nil {
		return Asset{}, err
	}

	oldValue := asset.AppraisedValue
	newValue := quote.Price

	asset.AppraisedValue = newValue
	asset.LastAppraisalAt = now
	asset.AppraiserID = appraiser.ID
	asset.UpdatedAt = now
	appraiser.AppraisalCount++
	appraiser.UpdatedAt = now

	s.totalValueLocked = saturatingSub(s.totalValueLocked, oldValue) + newValue
	if err := s.claims.UpdateCollateralValue(s.operatorID, s.totalValueLocked); err != nil {
		log.Printf("collateral value push failed after reappraisal of asset %d: %v", assetID, err)
	}

	defaulted := false
	threshold, thrErr := numeric.ApplyBps(oldValue, DefaultThresholdBps)
	if thrErr == nil && newValue < threshold {
		asset.Status = StatusDefaulted
		defaulted = true
	}

	s.persistAsset(asset)
	s.persistAppraiser(appraiser)
	s.pub.Publish(events.KindAssetReappraised, assetID, map[string]any{
		"old_value": oldValue, "new_value": newValue,
	})
	if defaulted {
		s.pub.Publish(events.KindAssetDefaulted, assetID, map[string]any{
			"old_value": oldValue, "new_value": newValue,
		})
		if err := s.alert.MarginCall(assetID, oldValue, newValue); err != nil {
			log.Printf("margin call alert failed for asset %d: %v", assetID, err)
		}
	}
	return *asset, nil
}

func (s *service) ApproveCustodian(ctx context.Context, callerUUID, accountUUID, name, certificationHash string) (Custodian, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Custodian{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleCustodianManager); err != nil {
		return Custodian{}, err
	}

	now := s.now()
	if id, ok := s.custodianByUUID[accountUUID]; ok {
		custodian := s.custodians[id]
		if custodian.Approved {
			return Custodian{}, ErrCustodianExists
		}
		custodian.Approved = true
		custodian.Name = name
		custodian.CertificationHash = certificationHash
		custodian.UpdatedAt = now
		s.persistCustodian(custodian)
		s.pub.Publish(events.KindCustodianApproved, id, map[string]any{"account": accountUUID})
		return *custodian, nil
	}

	id := s.nextCustodianID
	s.nextCustodianID++

	custodian := &Custodian{
		ID:                id,
		AccountUUID:       accountUUID,
		Name:              name,
		Approved:          true,
		CertificationHash: certificationHash,
		ReputationScore:   100,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.custodians[id] = custodian
	s.custodianByUUID[accountUUID] = id

	s.persistCustodian(custodian)
	s.pub.Publish(events.KindCustodianApproved, id, map[string]any{"account": accountUUID})
	return *custodian, nil
}

// RevokeCustodian flips the approval flag; the record itself is never
// deleted and the ID is never reused.
func (s *service) RevokeCustodian(ctx context.Context, callerUUID string, custodianID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleCustodianManager); err != nil {
		return err
	}

	custodian, ok := s.custodians[custodianID]
	if !ok || !custodian.Approved {
		return ErrCustodianNotFound
	}
	if custodian.AssetCount > 0 {
		return ErrCustodianHasAssets
	}

	custodian.Approved = false
	custodian.UpdatedAt = s.now()

	s.persistCustodian(custodian)
	s.pub.Publish(events.KindCustodianRevoked, custodianID, nil)
	return nil
}

func (s *service) CertifyAppraiser(ctx context.Context, callerUUID, accountUUID string, expiry time.Time) (Appraiser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Appraiser{}, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleGovernance); err != nil {
		return Appraiser{}, err
	}

	now := s.now()
	if id, ok := s.appraiserByUUID[accountUUID]; ok {
		appraiser := s.appraisers[id]
		appraiser.Certified = true
		appraiser.CertificationExpiry = expiry
		appraiser.UpdatedAt = now
		s.persistAppraiser(appraiser)
		s.pub.Publish(events.KindAppraiserCertified, id, map[string]any{"account": accountUUID})
		return *appraiser, nil
	}

	id := s.nextAppraiserID
	s.nextAppraiserID++

	appraiser := &Appraiser{
		ID:                  id,
		AccountUUID:         accountUUID,
		Certified:           true,
		CertificationExpiry: expiry,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.appraisers[id] = appraiser
	s.appraiserByUUID[accountUUID] = id

	s.persistAppraiser(appraiser)
	s.pub.Publish(events.KindAppraiserCertified, id, map[string]any{"account": accountUUID})
	return *appraiser, nil
}

func (s *service) RevokeAppraiser(ctx context.Context, callerUUID string, appraiserID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleGovernance); err != nil {
		return err
	}

	appraiser, ok := s.appraisers[appraiserID]
	if !ok || !appraiser.Certified {
		return ErrAppraiserNotFound
	}

	appraiser.Certified = false
	appraiser.UpdatedAt = s.now()

	s.persistAppraiser(appraiser)
	s.pub.Publish(events.KindAppraiserRevoked, appraiserID, nil)
	return nil
}

// WithdrawFees atomically reads and zeroes the fee accumulator. The value
// transfer to the treasury happens outside the core; here the collected
// amount is earmarked and reported.
func (s *service) WithdrawFees(ctx context.Context, callerUUID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return 0, ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleGovernance); err != nil {
		return 0, err
	}

	amount := s.feesCollected
	s.feesCollected = 0

	s.persistState()
	s.pub.Publish(events.KindFeesWithdrawn, 0, map[string]any{"amount": amount, "to": callerUUID})
	if err := s.alert.FeesWithdrawn(amount, callerUUID); err != nil {
		log.Printf("fee withdrawal alert failed: %v", err)
	}
	return amount, nil
}

func (s *service) UpdateFeeRates(ctx context.Context, callerUUID string, rates FeeRates) error {
	if rates.TokenizationBps > MaxTokenizationFeeBps ||
		rates.CustodyBps > MaxCustodyFeeBps ||
		rates.TransactionBps > MaxTransactionFeeBps ||
		rates.RedemptionBps > MaxRedemptionFeeBps {
		return ErrInvalidFeeRates
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}
	if err := s.requireRole(ctx, callerUUID, access.RoleGovernance); err != nil {
		return err
	}

	s.feeRates = rates
	s.persistState()
	s.pub.Publish(events.KindFeeRatesUpdated, 0, map[string]any{
		"tokenization_bps": rates.TokenizationBps,
		"custody_bps":      rates.CustodyBps,
		"transaction_bps":  rates.TransactionBps,
		"redemption_bps":   rates.RedemptionBps,
	})
	return nil
}

func (s *service) Pause(ctx context.Context, callerUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRole(ctx, callerUUID, access.RoleEmergency); err != nil {
		return err
	}

	s.paused = true
	s.persistState()
	s.pub.Publish(events.KindVaultPaused, 0, nil)
	return nil
}

func (s *service) Unpause(ctx context.Context, callerUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRole(ctx, callerUUID, access.RoleEmergency); err != nil {
		return err
	}

	s.paused = false
	s.persistState()
	s.pub.Publish(events.KindVaultUnpaused, 0, nil)
	return nil
}

func (s *service) GetAsset(assetID int64) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[assetID]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	return *asset, nil
}

func (s *service) ListAssets(filters AssetFilters, page, limit int) ([]Asset, int64) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Asset, 0)
	for id := int64(1); id < s.nextAssetID; id++ {
		asset, ok := s.assets[id]
		if !ok {
			continue
		}
		if filters.OwnerUUID != nil && asset.OwnerUUID != *filters.OwnerUUID {
			continue
		}
		if filters.Category != nil && asset.Category != *filters.Category {
			continue
		}
		if filters.Status != nil && asset.Status != *filters.Status {
			continue
		}
		matched = append(matched, *asset)
	}

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []Asset{}, total
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total
}

func (s *service) GetCustodian(custodianID int64) (Custodian, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	custodian, ok := s.custodians[custodianID]
	if !ok {
		return Custodian{}, ErrCustodianNotFound
	}
	return *custodian, nil
}

func (s *service) ListCustodians() []Custodian {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Custodian, 0, len(s.custodians))
	for id := int64(1); id < s.nextCustodianID; id++ {
		if c, ok := s.custodians[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

func (s *service) ListAppraisers() []Appraiser {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Appraiser, 0, len(s.appraisers))
	for id := int64(1); id < s.nextAppraiserID; id++ {
		if a, ok := s.appraisers[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

func (s *service) CurrentFeeRates() FeeRates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeRates
}

func (s *service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		TotalValueLocked:  s.totalValueLocked,
		TotalClaimsIssued: s.totalClaimsIssued,
		FeesCollected:     s.feesCollected,
		AssetCount:        s.nextAssetID - 1,
		Paused:            s.paused,
	}
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

// certifiedAppraiser resolves the caller to a certified appraiser record,
// requiring both the role grant and a live certification.
func (s *service) certifiedAppraiser(ctx context.Context, callerUUID string) (*Appraiser, error) {
	if err := s.requireRole(ctx, callerUUID, access.RoleAppraiser); err != nil {
		return nil, err
	}
	id, ok := s.appraiserByUUID[callerUUID]
	if !ok {
		return nil, ErrAppraiserNotCertified
	}
	appraiser := s.appraisers[id]
	if !appraiser.Certified || !s.now().Before(appraiser.CertificationExpiry) {
		return nil, ErrAppraiserNotCertified
	}
	return appraiser, nil
}

func (s *service) persistAsset(asset *Asset) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveAsset(context.Background(), *asset); err != nil {
		log.Printf("asset persist failed for %d: %v", asset.ID, err)
	}
}

func (s *service) persistCustodian(custodian *Custodian) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveCustodian(context.Background(), *custodian); err != nil {
		log.Printf("custodian persist failed for %d: %v", custodian.ID, err)
	}
}

func (s *service) persistAppraiser(appraiser *Appraiser) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveAppraiser(context.Background(), *appraiser); err != nil {
		log.Printf("appraiser persist failed for %d: %v", appraiser.ID, err)
	}
}

func (s *service) persistState() {
	if s.repo == nil {
		return
	}
	state := State{FeesCollected: s.feesCollected, FeeRates: s.feeRates, Paused: s.paused}
	if err := s.repo.SaveState(context.Background(), state); err != nil {
		log.Printf("vault state persist failed: %v", err)
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
