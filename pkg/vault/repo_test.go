package vault

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"primevault/pkg/testhelpers"
)

func setupVaultTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_FOR_TEST not set; skipping vault repository tests")
	}

	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(pool.Close)
	return pool
}

func cleanVaultTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, "TRUNCATE TABLE assets, custodians, appraisers, accounts RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

func TestPostgresRepository_SaveAndLoadAsset(t *testing.T) {
	pool := setupVaultTestPool(t)
	cleanVaultTables(t, pool)

	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	ownerUUID := testhelpers.CreateTestAccount(t, pool)
	custodianID := testhelpers.CreateTestCustodian(t, pool, testhelpers.CreateTestAccount(t, pool))

	now := time.Now().UTC().Truncate(time.Microsecond)
	asset := Asset{
		ID:              1,
		Category:        CategoryPreciousMetals,
		OwnerUUID:       ownerUUID,
		Description:     "1kg gold bar",
		SerialHash:      "sha256:bar01",
		AppraisedValue:  60000,
		LastAppraisalAt: now,
		AppraiserID:     3,
		ClaimsIssued:    59400,
		CollateralRatio: 10000,
		Locked:          true,
		CustodianID:     custodianID,
		TitleVerified:   true,
		Status:          StatusTokenized,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repo.SaveAsset(ctx, asset))

	loaded, err := repo.LoadAssets(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	require.Equal(t, asset.ID, got.ID)
	require.Equal(t, asset.OwnerUUID, got.OwnerUUID)
	require.Equal(t, asset.AppraisedValue, got.AppraisedValue)
	require.Equal(t, asset.ClaimsIssued, got.ClaimsIssued)
	require.True(t, got.Locked)
	require.True(t, got.TitleVerified)
	require.Equal(t, StatusTokenized, got.Status)
	require.WithinDuration(t, now, got.LastAppraisalAt, time.Second)
}

func TestPostgresRepository_SaveAsset_Upsert(t *testing.T) {
	pool := setupVaultTestPool(t)
	cleanVaultTables(t, pool)

	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	ownerUUID := testhelpers.CreateTestAccount(t, pool)
	custodianID := testhelpers.CreateTestCustodian(t, pool, testhelpers.CreateTestAccount(t, pool))

	now := time.Now().UTC()
	asset := Asset{
		ID:              1,
		Category:        CategoryRealEstate,
		OwnerUUID:       ownerUUID,
		SerialHash:      "sha256:deed01",
		AppraisedValue:  10000000,
		LastAppraisalAt: now,
		CustodianID:     custodianID,
		Status:          StatusPendingVerification,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repo.SaveAsset(ctx, asset))

	asset.Status = StatusVerified
	asset.TitleVerified = true
	asset.AppraisedValue = 9500000
	require.NoError(t, repo.SaveAsset(ctx, asset))

	loaded, err := repo.LoadAssets(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, StatusVerified, loaded[0].Status)
	require.Equal(t, uint64(9500000), loaded[0].AppraisedValue)
	require.True(t, loaded[0].TitleVerified)
}

func TestPostgresRepository_LoadAssets_OrderedByID(t *testing.T) {
	pool := setupVaultTestPool(t)
	cleanVaultTables(t, pool)

	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	ownerUUID := testhelpers.CreateTestAccount(t, pool)
	custodianID := testhelpers.CreateTestCustodian(t, pool, testhelpers.CreateTestAccount(t, pool))

	now := time.Now().UTC()
	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, repo.SaveAsset(ctx, Asset{
			ID:              id,
			Category:        CategoryPreciousMetals,
			OwnerUUID:       ownerUUID,
			SerialHash:      "sha256:bar0" + string(rune('0'+id)),
			AppraisedValue:  60000,
			LastAppraisalAt: now,
			CustodianID:     custodianID,
			Status:          StatusPendingVerification,
			CreatedAt:       now,
			UpdatedAt:       now,
		}))
	}

	loaded, err := repo.LoadAssets(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	require.Equal(t, int64(1), loaded[0].ID)
	require.Equal(t, int64(2), loaded[1].ID)
	require.Equal(t, int64(3), loaded[2].ID)
}

func TestPostgresRepository_SaveAndLoadCustodian(t *testing.T) {
	pool := setupVaultTestPool(t)
	cleanVaultTables(t, pool)

	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	custodian := Custodian{
		ID:                1,
		AccountUUID:       testhelpers.CreateTestAccount(t, pool),
		Name:              "Brinks Geneva",
		Approved:          true,
		AssetCount:        2,
		TotalValue:        120000,
		CertificationHash: "sha256:cert01",
		ReputationScore:   100,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, repo.SaveCustodian(ctx, custodian))

	custodian.Approved = false
	custodian.AssetCount = 0
	require.NoError(t, repo.SaveCustodian(ctx, custodian))

	loaded, err := repo.LoadCustodians(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.False(t, loaded[0].Approved)
	require.EqualValues(t, 0, loaded[0].AssetCount)
	require.Equal(t, "Brinks Geneva", loaded[0].Name)
}

func TestPostgresRepository_SaveAndLoadAppraiser(t *testing.T) {
	pool := setupVaultTestPool(t)
	cleanVaultTables(t, pool)

	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	appraiser := Appraiser{
		ID:                  1,
		AccountUUID:         testhelpers.CreateTestAccount(t, pool),
		Certified:           true,
		AppraisalCount:      5,
		CertificationExpiry: now.AddDate(1, 0, 0),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, repo.SaveAppraiser(ctx, appraiser))

	loaded, err := repo.LoadAppraisers(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.True(t, loaded[0].Certified)
	require.EqualValues(t, 5, loaded[0].AppraisalCount)
	require.WithinDuration(t, appraiser.CertificationExpiry, loaded[0].CertificationExpiry, time.Second)
}
