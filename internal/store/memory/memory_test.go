package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store"
	"github.com/harrison/fragility/internal/store/memory"
	"github.com/harrison/fragility/internal/store/storetest"
)

func newStore(*testing.T) store.Store { return memory.New() }

func TestMemoryStore_EventContract(t *testing.T) {
	storetest.RunEventStoreContract(t, newStore)
}

func TestMemoryStore_ReportContract(t *testing.T) {
	storetest.RunReportStoreContract(t, newStore)
}

func TestMemoryStore_AppendRawKeepsMalformedRows(t *testing.T) {
	s := memory.New()
	s.AppendRaw(
		models.EventRow{Position: models.Int64Ptr(7), UserID: models.Int64Ptr(1), Action: models.StringPtr("login")},
		models.EventRow{Position: models.Int64Ptr(8), UserID: models.Int64Ptr(1)},
	)

	snap, err := s.ReadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Events, 2)
	require.Len(t, snap.Tally, 2)

	stored, err := s.AppendEvents(context.Background(), []models.NewEvent{{UserID: 1, Action: "logout"}})
	require.NoError(t, err)
	assert.Equal(t, int64(9), stored[0].Position)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memory.New().ReadEvents(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
