package report

import (
	"sort"

	"github.com/harrison/fragility/internal/models"
)

// RunComparison is one run in a comparison with its change from the previous run.
type RunComparison struct {
	Record models.ReportRecord `json:"record"`
	// ScoreDelta is nil for the first run and whenever either score is absent.
	ScoreDelta  *float64 `json:"score_delta,omitempty"`
	EventsDelta int64    `json:"events_delta"`
	LabelChange bool     `json:"label_change"`
}

// CompareRuns orders records by creation time (oldest first) and computes
// deltas between consecutive runs.
func CompareRuns(records []models.ReportRecord) []RunComparison {
	sorted := make([]models.ReportRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	result := make([]RunComparison, len(sorted))
	for i, r := range sorted {
		result[i] = RunComparison{Record: r}
		if i == 0 {
			continue
		}

		prev := sorted[i-1]
		result[i].EventsDelta = r.TotalEvents - prev.TotalEvents
		result[i].LabelChange = r.FragilityLabel != prev.FragilityLabel

		cur, before := r.Score(), prev.Score()
		if cur.Valid && before.Valid {
			d := cur.Value - before.Value
			result[i].ScoreDelta = &d
		}
	}
	return result
}
