// Package storetest holds the behavioral contract every store adapter must
// satisfy. Adapter tests call the Run functions with a factory that returns
// an empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store"
)

// Factory returns an empty store. The contract closes it.
type Factory func(t *testing.T) store.Store

// RunEventStoreContract verifies the event log behavior of an adapter.
func RunEventStoreContract(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyStore", func(t *testing.T) {
		s := open(t, newStore)

		events, err := s.ReadEvents(ctx)
		require.NoError(t, err)
		assert.Empty(t, events)

		tally, err := s.ReadActionTally(ctx)
		require.NoError(t, err)
		assert.Empty(t, tally)

		snap, err := s.ReadSnapshot(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap.Events)
		assert.Empty(t, snap.Tally)
	})

	t.Run("AppendAssignsPositions", func(t *testing.T) {
		s := open(t, newStore)

		stored, err := s.AppendEvents(ctx, []models.NewEvent{
			{UserID: 2, Action: "login"},
			{UserID: 1, Action: "login"},
			{UserID: 2, Action: "purchase"},
		})
		require.NoError(t, err)
		require.Len(t, stored, 3)

		for i := 1; i < len(stored); i++ {
			assert.Greater(t, stored[i].Position, stored[i-1].Position)
		}
		for _, e := range stored {
			assert.False(t, e.Timestamp.IsZero())
		}

		more, err := s.AppendEvents(ctx, []models.NewEvent{{UserID: 1, Action: "logout"}})
		require.NoError(t, err)
		require.Len(t, more, 1)
		assert.Greater(t, more[0].Position, stored[2].Position)
	})

	t.Run("ReadOrderedByUserThenPosition", func(t *testing.T) {
		s := open(t, newStore)

		_, err := s.AppendEvents(ctx, []models.NewEvent{
			{UserID: 3, Action: "login"},
			{UserID: 1, Action: "login"},
			{UserID: 3, Action: "browse"},
			{UserID: 1, Action: "logout"},
			{UserID: 2, Action: "browse"},
		})
		require.NoError(t, err)

		rows, err := s.ReadEvents(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 5)

		var got []string
		for i, r := range rows {
			require.NotNil(t, r.UserID)
			require.NotNil(t, r.Position)
			require.NotNil(t, r.Action)
			got = append(got, *r.Action)
			if i > 0 && *rows[i-1].UserID == *r.UserID {
				assert.Less(t, *rows[i-1].Position, *r.Position)
			}
		}
		assert.Equal(t, []string{"login", "logout", "browse", "login", "browse"}, got)
	})

	t.Run("InvalidBatchRejectedWhole", func(t *testing.T) {
		s := open(t, newStore)

		_, err := s.AppendEvents(ctx, []models.NewEvent{
			{UserID: 1, Action: "login"},
			{UserID: 0, Action: "browse"},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrInvalidEvent))

		_, err = s.AppendEvents(ctx, []models.NewEvent{{UserID: 1, Action: "  "}})
		assert.True(t, errors.Is(err, store.ErrInvalidEvent))

		rows, err := s.ReadEvents(ctx)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("TallyAgreesWithEvents", func(t *testing.T) {
		s := open(t, newStore)

		_, err := s.AppendEvents(ctx, []models.NewEvent{
			{UserID: 1, Action: "login"},
			{UserID: 1, Action: "purchase"},
			{UserID: 2, Action: "login"},
			{UserID: 2, Action: "login"},
		})
		require.NoError(t, err)

		snap, err := s.ReadSnapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, snap.Events, 4)

		counts := make(map[string]int64)
		for _, row := range snap.Tally {
			require.NotNil(t, row.Action)
			require.NotNil(t, row.Count)
			counts[*row.Action] += *row.Count
		}
		assert.Equal(t, map[string]int64{"login": 3, "purchase": 1}, counts)

		tally, err := s.ReadActionTally(ctx)
		require.NoError(t, err)
		assert.Len(t, tally, 2)
	})
}

// RunReportStoreContract verifies the report history behavior of an adapter.
func RunReportStoreContract(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("AppendAndGet", func(t *testing.T) {
		s := open(t, newStore)

		stored, err := s.AppendReport(ctx, models.ReportRecord{
			RunID:          "run-1",
			CreatedAt:      base,
			TotalEvents:    3,
			FragilityScore: 1.0 / 3.0,
			FragilityLabel: models.LabelMedium,
			SkippedRows:    1,
			SkippedEvents:  2,
			Details:        "=== Decision Fragility Report ===\n",
		})
		require.NoError(t, err)
		assert.NotZero(t, stored.ID)

		got, err := s.GetReport(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "run-1", got.RunID)
		assert.True(t, base.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, base)
		assert.Equal(t, int64(3), got.TotalEvents)
		assert.InDelta(t, 1.0/3.0, got.FragilityScore, 1e-9)
		assert.Equal(t, models.LabelMedium, got.FragilityLabel)
		assert.Equal(t, 1, got.SkippedRows)
		assert.Equal(t, 2, got.SkippedEvents)
		assert.Equal(t, "=== Decision Fragility Report ===\n", got.Details)
	})

	t.Run("NoDataKeepsLabel", func(t *testing.T) {
		s := open(t, newStore)

		stored, err := s.AppendReport(ctx, models.ReportRecord{
			RunID:          "empty",
			FragilityLabel: models.LabelNoData,
		})
		require.NoError(t, err)
		assert.False(t, stored.CreatedAt.IsZero())

		got, err := s.GetReport(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.FragilityScore)
		assert.False(t, got.Score().Valid)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t, newStore)

		_, err := s.GetReport(ctx, 424242)
		assert.True(t, errors.Is(err, store.ErrReportNotFound))
	})

	t.Run("ListMostRecentFirst", func(t *testing.T) {
		s := open(t, newStore)
		seed(t, s, base, 5)

		all, err := s.ListReports(ctx, models.HistoryQuery{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i := 1; i < len(all); i++ {
			assert.True(t, all[i-1].CreatedAt.After(all[i].CreatedAt))
		}
		assert.Equal(t, "run-4", all[0].RunID)

		limited, err := s.ListReports(ctx, models.HistoryQuery{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "run-4", limited[0].RunID)
		assert.Equal(t, "run-3", limited[1].RunID)
	})

	t.Run("ListCreatedAtRange", func(t *testing.T) {
		s := open(t, newStore)
		seed(t, s, base, 5)

		start := base.Add(1 * time.Hour)
		end := base.Add(3 * time.Hour)
		got, err := s.ListReports(ctx, models.HistoryQuery{Start: &start, End: &end})
		require.NoError(t, err)

		var ids []string
		for _, r := range got {
			ids = append(ids, r.RunID)
		}
		assert.Equal(t, []string{"run-3", "run-2", "run-1"}, ids)

		got, err = s.ListReports(ctx, models.HistoryQuery{Start: &start, End: &end, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "run-3", got[0].RunID)
	})
}

func open(t *testing.T, newStore Factory) store.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seed appends n reports an hour apart, inserted newest first
func seed(t *testing.T, s store.Store, base time.Time, n int) {
	t.Helper()
	for i := n - 1; i >= 0; i-- {
		_, err := s.AppendReport(context.Background(), models.ReportRecord{
			RunID:          "run-" + string(rune('0'+i)),
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			TotalEvents:    int64(i),
			FragilityLabel: models.LabelLow,
		})
		require.NoError(t, err)
	}
}
