// Package dbtest opens a throwaway PostgreSQL pool for adapter tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-provision/internal/platform/db"
)

// EnvDSN names the variable that enables database-backed tests.
const EnvDSN = "PG_TEST_DSN"

// Pool connects to PG_TEST_DSN, applies the schema and empties every table.
// The test is skipped when the variable is unset.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.ApplySchema(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE identities, directory_records, audit_events`)
	require.NoError(t, err)
	return pool
}
