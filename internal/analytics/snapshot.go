package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/harrison/fragility/internal/models"
)

// EventReader is the read side of the event store needed by the engine.
type EventReader interface {
	// ReadEvents returns all events ordered by user, then position.
	ReadEvents(ctx context.Context) ([]models.EventRow, error)
}

// Snapshot is one normalized read of the event store
type Snapshot struct {
	Events  []models.Event
	Skipped []models.SkippedRow
}

// LoadSnapshot reads every event once and normalizes the rows.
func LoadSnapshot(ctx context.Context, reader EventReader) (*Snapshot, error) {
	rows, err := reader.ReadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	events, skipped := NormalizeEvents(rows)
	return &Snapshot{Events: events, Skipped: skipped}, nil
}

// userSequence is one user's events in position order
type userSequence struct {
	userID int64
	events []models.Event
}

// partitionByUser groups events by user, each partition sorted by position.
// Partitions come out in ascending user order. The input slice is not modified.
func partitionByUser(events []models.Event) []userSequence {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		return sorted[i].Position < sorted[j].Position
	})

	var partitions []userSequence
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].UserID == sorted[i].UserID {
			j++
		}
		partitions = append(partitions, userSequence{
			userID: sorted[i].UserID,
			events: sorted[i:j],
		})
		i = j
	}
	return partitions
}
