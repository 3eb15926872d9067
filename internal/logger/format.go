package logger

import (
	"fmt"

	"github.com/harrison/fragility/internal/models"
)

func formatRunStart(runID string) string {
	return fmt.Sprintf("Run %s: building fragility report", runID)
}

func formatSkippedSummary(runID, source string, n int) string {
	noun := "rows"
	if n == 1 {
		noun = "row"
	}
	return fmt.Sprintf("Run %s: skipped %d malformed %s %s", runID, n, source, noun)
}

func formatSkippedRow(source string, row models.SkippedRow) string {
	return fmt.Sprintf("  %s row %d: %s", source, row.Index, row.Reason)
}

func formatTallyMismatch(runID string, direct, tally int64) string {
	return fmt.Sprintf("Run %s: direct event count %d differs from action tally total %d", runID, direct, tally)
}

func formatReportPersisted(record *models.ReportRecord, label string) string {
	score := "n/a"
	if s := record.Score(); s.Valid {
		score = fmt.Sprintf("%.4f", s.Value)
	}
	return fmt.Sprintf("Run %s: stored report #%d (events=%d, score=%s, label=%s)",
		record.RunID, record.ID, record.TotalEvents, score, label)
}

func formatPersistFailure(runID string, err error) string {
	return fmt.Sprintf("Run %s: failed to persist report: %v", runID, err)
}

func formatIngest(events, users int) string {
	return fmt.Sprintf("Ingested %d events across %d users", events, users)
}
