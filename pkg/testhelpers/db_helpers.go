package testhelpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var uniqueCounter int64

func nextSuffix() int64 {
	return atomic.AddInt64(&uniqueCounter, 1)
}

// CreateTestAccount inserts a minimal valid account row and returns its UUID.
func CreateTestAccount(t *testing.T, db *pgxpool.Pool, roles ...string) string {
	t.Helper()

	ctx := context.Background()
	suffix := nextSuffix()
	name := fmt.Sprintf("test-account-%d", suffix)
	email := fmt.Sprintf("%s@example.com", name)
	if roles == nil {
		roles = []string{}
	}

	accountUUID := uuid.NewString()
	_, err := db.Exec(ctx,
		"INSERT INTO accounts (uuid, name, email, roles, password_hash) VALUES ($1, $2, $3, $4, $5)",
		accountUUID, name, email, roles, "hash")
	require.NoError(t, err)
	return accountUUID
}

// CreateTestCustodian inserts an approved custodian row and returns its ID.
func CreateTestCustodian(t *testing.T, db *pgxpool.Pool, accountUUID string) int64 {
	t.Helper()

	ctx := context.Background()
	suffix := nextSuffix()
	name := fmt.Sprintf("test-custodian-%d", suffix)

	var id int64
	err := db.QueryRow(ctx,
		"INSERT INTO custodians (id, account_uuid, name, approved, reputation_score) VALUES ($1, $2, $3, true, 100) RETURNING id",
		suffix, accountUUID, name).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateTestAsset inserts a pending asset under the given owner and custodian
// and returns its ID.
func CreateTestAsset(t *testing.T, db *pgxpool.Pool, ownerUUID string, custodianID int64) int64 {
	t.Helper()

	ctx := context.Background()
	suffix := nextSuffix()
	serial := fmt.Sprintf("test-serial-%d", suffix)

	var id int64
	err := db.QueryRow(ctx,
		`INSERT INTO assets (id, category, owner_uuid, serial_hash, appraised_value, last_appraisal_at, custodian_id, status)
		 VALUES ($1, 'precious-metals', $2, $3, 60000, NOW(), $4, 'pending_verification') RETURNING id`,
		suffix, ownerUUID, serial, custodianID).Scan(&id)
	require.NoError(t, err)
	return id
}
