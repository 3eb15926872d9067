package analytics

import (
	"sort"
	"strings"

	"github.com/harrison/fragility/internal/models"
)

// Skip reasons reported for malformed rows
const (
	ReasonMissingPosition = "missing position"
	ReasonMissingUser     = "missing user_id"
	ReasonMissingAction   = "missing action"
	ReasonMissingCount    = "missing count"
	ReasonNegativeCount   = "negative count"
)

// NormalizeEvent validates one raw event row.
// It returns the canonical event, or the reason the row must be skipped.
func NormalizeEvent(row models.EventRow) (models.Event, string) {
	if row.Position == nil {
		return models.Event{}, ReasonMissingPosition
	}
	if row.UserID == nil {
		return models.Event{}, ReasonMissingUser
	}
	if row.Action == nil || strings.TrimSpace(*row.Action) == "" {
		return models.Event{}, ReasonMissingAction
	}

	event := models.Event{
		Position: *row.Position,
		UserID:   *row.UserID,
		Action:   strings.TrimSpace(*row.Action),
	}
	if row.Timestamp != nil {
		event.Timestamp = *row.Timestamp
	}
	return event, ""
}

// NormalizeEvents converts raw rows into events, dropping malformed rows.
// The result is ordered by user then position regardless of input order.
func NormalizeEvents(rows []models.EventRow) ([]models.Event, []models.SkippedRow) {
	events := make([]models.Event, 0, len(rows))
	var skipped []models.SkippedRow

	for i, row := range rows {
		event, reason := NormalizeEvent(row)
		if reason != "" {
			skipped = append(skipped, models.SkippedRow{Index: i, Reason: reason})
			continue
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].UserID != events[j].UserID {
			return events[i].UserID < events[j].UserID
		}
		return events[i].Position < events[j].Position
	})

	return events, skipped
}

// NormalizeTally validates per-action aggregate rows.
// Malformed rows are skipped and reported, never fatal. Duplicate actions are
// merged so the tally holds each action once, sorted by action.
func NormalizeTally(rows []models.TallyRow) (models.ActionTally, []models.SkippedRow) {
	counts := make(map[string]int64, len(rows))
	var skipped []models.SkippedRow

	for i, row := range rows {
		switch {
		case row.Action == nil || strings.TrimSpace(*row.Action) == "":
			skipped = append(skipped, models.SkippedRow{Index: i, Reason: ReasonMissingAction})
		case row.Count == nil:
			skipped = append(skipped, models.SkippedRow{Index: i, Reason: ReasonMissingCount})
		case *row.Count < 0:
			skipped = append(skipped, models.SkippedRow{Index: i, Reason: ReasonNegativeCount})
		default:
			counts[strings.TrimSpace(*row.Action)] += *row.Count
		}
	}

	tally := make(models.ActionTally, 0, len(counts))
	for action, count := range counts {
		tally = append(tally, models.ActionCount{Action: action, Count: count})
	}
	sort.Slice(tally, func(i, j int) bool {
		return tally[i].Action < tally[j].Action
	})

	return tally, skipped
}

// TallyEvents counts events per action, sorted by action.
func TallyEvents(events []models.Event) models.ActionTally {
	counts := make(map[string]int64)
	for _, e := range events {
		counts[e.Action]++
	}

	tally := make(models.ActionTally, 0, len(counts))
	for action, count := range counts {
		tally = append(tally, models.ActionCount{Action: action, Count: count})
	}
	sort.Slice(tally, func(i, j int) bool {
		return tally[i].Action < tally[j].Action
	})
	return tally
}
