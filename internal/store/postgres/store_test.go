package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fragility/internal/store"
	"github.com/harrison/fragility/internal/store/storetest"
)

// setupTestStore connects to FRAGILITY_TEST_DATABASE_URL and empties the tables.
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("FRAGILITY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FRAGILITY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `TRUNCATE raw.user_actions, analytics.reports RESTART IDENTITY`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore_EventContract(t *testing.T) {
	storetest.RunEventStoreContract(t, setupTestStore)
}

func TestPostgresStore_ReportContract(t *testing.T) {
	storetest.RunReportStoreContract(t, setupTestStore)
}

func TestPostgresStore_Migrations(t *testing.T) {
	s := setupTestStore(t).(*Store)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.ApplyMigrations(ctx))

	version, err := s.GetLatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}
