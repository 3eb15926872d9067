package models

import (
	"fmt"
	"strings"
	"time"
)

// Label is the qualitative fragility classification
type Label string

// Fragility labels
const (
	LabelLow    Label = "LOW"
	LabelMedium Label = "MEDIUM"
	LabelHigh   Label = "HIGH"
	LabelNoData Label = "NO_DATA"

	legacyNoData = "NO DATA"
)

// ParseLabel maps stored label text to a Label. Reports written by the
// earlier Python tooling spell the empty label "NO DATA".
func ParseLabel(s string) Label {
	s = strings.TrimSpace(s)
	if s == legacyNoData {
		return LabelNoData
	}
	return Label(s)
}

// Valid reports whether l is one of the known labels
func (l Label) Valid() bool {
	switch l {
	case LabelLow, LabelMedium, LabelHigh, LabelNoData:
		return true
	}
	return false
}

// Score is a fragility ratio that may be absent (no events).
type Score struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Present builds a valid score
func Present(v float64) Score { return Score{Value: v, Valid: true} }

// Absent is the score of an empty snapshot
var Absent = Score{}

// ReportRecord is one persisted analysis run. Records are append-only.
// FragilityScore is stored as 0 when the score was absent; the NO_DATA label
// keeps that recoverable.
type ReportRecord struct {
	ID             int64     `json:"id" db:"id"`
	RunID          string    `json:"run_id" db:"run_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	TotalEvents    int64     `json:"total_events" db:"total_events"`
	FragilityScore float64   `json:"fragility_score" db:"fragility_score"`
	FragilityLabel Label     `json:"fragility_label" db:"fragility_label"`
	SkippedRows    int       `json:"skipped_rows" db:"skipped_rows"`
	SkippedEvents  int       `json:"skipped_events" db:"skipped_events"`
	Details        string    `json:"details" db:"details"`
}

// Score returns the record's score, absent when the label is NO_DATA
func (r *ReportRecord) Score() Score {
	if ParseLabel(string(r.FragilityLabel)) == LabelNoData {
		return Absent
	}
	return Present(r.FragilityScore)
}

// HistoryQuery bounds a report history read. Zero values mean unbounded.
type HistoryQuery struct {
	Limit int
	Start *time.Time
	End   *time.Time
}

// Matches reports whether createdAt falls inside the query's range
func (q HistoryQuery) Matches(createdAt time.Time) bool {
	if q.Start != nil && createdAt.Before(*q.Start) {
		return false
	}
	if q.End != nil && createdAt.After(*q.End) {
		return false
	}
	return true
}

// ParseTimeBound parses a history range bound. RFC 3339 timestamps are used
// as given; a bare date (2006-01-02) selects the start of that UTC day, or its
// last nanosecond when end is true so date-only ranges stay inclusive.
// An empty string is no bound.
func ParseTimeBound(s string, end bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	if end {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}
