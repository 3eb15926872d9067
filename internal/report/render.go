package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/fragility/internal/analytics"
	"github.com/harrison/fragility/internal/models"
)

// Text report markers shared by RenderText and ParseText
const (
	Title         = "=== Decision Fragility Report ==="
	NoScoreMarker = "N/A (no events to analyze)"
	NoEventsLine  = "(no events found)"

	keyTotalEvents = "Total events observed"
	keyScore       = "Fragility score"
	keyLabel       = "Classification"
	keySkipped     = "Skipped tally rows"
	keySkippedEvts = "Skipped event rows"
	headerCounts   = "Per-action event counts:"
	headerInterp   = "Interpretation:"
	noEventsPrefix = "(no events found"
)

// Summary is the data rendered into a report
type Summary struct {
	TotalEvents   int64
	Score         models.Score
	Label         models.Label
	SkippedRows   int
	SkippedEvents int
	Tally         models.ActionTally
}

// FormatScore renders a score to 4 decimals, or the no-data marker
func FormatScore(score models.Score) string {
	if !score.Valid {
		return NoScoreMarker
	}
	return fmt.Sprintf("%.4f", score.Value)
}

// RenderText produces the plain-text report stored in the record's details.
// Downstream consumers parse it; see ParseText.
func RenderText(s Summary) string {
	var b strings.Builder

	b.WriteString(Title + "\n\n")
	fmt.Fprintf(&b, "%-21s : %d\n", keyTotalEvents, s.TotalEvents)
	fmt.Fprintf(&b, "%-21s : %s\n", keyScore, FormatScore(s.Score))
	fmt.Fprintf(&b, "%-21s : %s\n", keyLabel, s.Label)
	fmt.Fprintf(&b, "%-21s : %d\n", keySkipped, s.SkippedRows)
	fmt.Fprintf(&b, "%-21s : %d\n", keySkippedEvts, s.SkippedEvents)

	b.WriteString("\n" + headerCounts + "\n")
	if len(s.Tally) == 0 {
		b.WriteString("  " + NoEventsLine + "\n")
	}
	for _, c := range s.Tally {
		fmt.Fprintf(&b, "  - %s: %d\n", c.Action, c.Count)
	}

	b.WriteString("\n" + headerInterp + "\n")
	b.WriteString("  " + analytics.Interpretation(s.Label) + "\n")

	return b.String()
}

// RenderMarkdown renders a stored record as a markdown document.
// The per-action counts are recovered from the record's text details.
func RenderMarkdown(record *models.ReportRecord) (string, error) {
	parsed, err := ParseText(record.Details)
	if err != nil {
		return "", fmt.Errorf("parse details of report %d: %w", record.ID, err)
	}

	var b strings.Builder
	b.WriteString("# Decision Fragility Report\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Report | %d |\n", record.ID)
	if record.RunID != "" {
		fmt.Fprintf(&b, "| Run | `%s` |\n", record.RunID)
	}
	fmt.Fprintf(&b, "| Created | %s |\n", record.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "| Total events | %d |\n", record.TotalEvents)
	fmt.Fprintf(&b, "| Fragility score | %s |\n", FormatScore(record.Score()))
	label := models.ParseLabel(string(record.FragilityLabel))
	fmt.Fprintf(&b, "| Classification | **%s** |\n", label)
	fmt.Fprintf(&b, "| Skipped tally rows | %d |\n", record.SkippedRows)
	fmt.Fprintf(&b, "| Skipped event rows | %d |\n", record.SkippedEvents)

	b.WriteString("\n## Per-action event counts\n\n")
	if len(parsed.Tally) == 0 {
		b.WriteString("_No events found._\n")
	}
	for _, c := range parsed.Tally {
		fmt.Fprintf(&b, "- `%s`: %d\n", c.Action, c.Count)
	}

	b.WriteString("\n## Interpretation\n\n")
	b.WriteString(analytics.Interpretation(label) + "\n")
	return b.String(), nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderHTML converts the markdown rendering of a record to an HTML fragment
func RenderHTML(record *models.ReportRecord) (string, error) {
	md, err := RenderMarkdown(record)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
