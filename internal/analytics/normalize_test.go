package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrison/fragility/internal/models"
)

func row(pos, user int64, action string) models.EventRow {
	ts := time.Date(2024, 1, 1, 0, 0, int(pos), 0, time.UTC)
	return models.EventRow{
		Position:  models.Int64Ptr(pos),
		UserID:    models.Int64Ptr(user),
		Action:    models.StringPtr(action),
		Timestamp: &ts,
	}
}

func TestNormalizeEvents(t *testing.T) {
	rows := []models.EventRow{
		row(2, 1, "browse"),
		{UserID: models.Int64Ptr(1), Action: models.StringPtr("login")},
		row(1, 1, "login"),
		{Position: models.Int64Ptr(4), Action: models.StringPtr("login")},
		row(5, 1, "   "),
		row(3, 0, "purchase"),
	}

	events, skipped := NormalizeEvents(rows)

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].UserID != 0 || events[1].Position != 1 || events[2].Position != 2 {
		t.Errorf("Events not ordered by user then position: %+v", events)
	}

	wantSkipped := []models.SkippedRow{
		{Index: 1, Reason: ReasonMissingPosition},
		{Index: 3, Reason: ReasonMissingUser},
		{Index: 4, Reason: ReasonMissingAction},
	}
	if len(skipped) != len(wantSkipped) {
		t.Fatalf("Expected %d skipped rows, got %v", len(wantSkipped), skipped)
	}
	for i := range wantSkipped {
		if skipped[i] != wantSkipped[i] {
			t.Errorf("Skipped %d: expected %+v, got %+v", i, wantSkipped[i], skipped[i])
		}
	}
}

func TestNormalizeTally(t *testing.T) {
	rows := []models.TallyRow{
		{Action: models.StringPtr("purchase"), Count: models.Int64Ptr(2)},
		{Action: models.StringPtr("login"), Count: models.Int64Ptr(5)},
		{Action: nil, Count: models.Int64Ptr(3)},
		{Action: models.StringPtr("logout"), Count: nil},
		{Action: models.StringPtr("refund"), Count: models.Int64Ptr(-1)},
		{Action: models.StringPtr(" login "), Count: models.Int64Ptr(1)},
	}

	tally, skipped := NormalizeTally(rows)

	if len(skipped) != 3 {
		t.Fatalf("Expected 3 skipped rows, got %v", skipped)
	}
	if skipped[0].Reason != ReasonMissingAction || skipped[1].Reason != ReasonMissingCount || skipped[2].Reason != ReasonNegativeCount {
		t.Errorf("Unexpected reasons %v", skipped)
	}

	want := models.ActionTally{{Action: "login", Count: 6}, {Action: "purchase", Count: 2}}
	if len(tally) != len(want) {
		t.Fatalf("Expected %v, got %v", want, tally)
	}
	for i := range want {
		if tally[i] != want[i] {
			t.Errorf("Tally %d: expected %v, got %v", i, want[i], tally[i])
		}
	}
	if tally.Total() != 8 {
		t.Errorf("Expected total 8, got %d", tally.Total())
	}
}

type fakeReader struct {
	rows []models.EventRow
	err  error
}

func (f *fakeReader) ReadEvents(context.Context) ([]models.EventRow, error) {
	return f.rows, f.err
}

func TestLoadSnapshot(t *testing.T) {
	snap, err := LoadSnapshot(context.Background(), &fakeReader{rows: []models.EventRow{row(1, 1, "login"), {}}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(snap.Events) != 1 || len(snap.Skipped) != 1 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}

	boom := errors.New("connection refused")
	if _, err := LoadSnapshot(context.Background(), &fakeReader{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped read error, got %v", err)
	}
}
