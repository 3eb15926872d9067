package analytics

import (
	"sort"
	"strings"

	"github.com/harrison/fragility/internal/models"
)

// Classification thresholds. Each band is closed on its lower bound.
const (
	MediumThreshold = 0.20
	HighThreshold   = 0.50
)

// DefaultTerminalActions are the actions that end or commit a decision.
var DefaultTerminalActions = []string{"purchase", "logout"}

// Scorer computes the fragility ratio: terminal actions over all actions.
type Scorer struct {
	terminal map[string]struct{}
}

// NewScorer creates a scorer for the given terminal set.
// With no actions it uses DefaultTerminalActions.
func NewScorer(terminalActions ...string) *Scorer {
	if len(terminalActions) == 0 {
		terminalActions = DefaultTerminalActions
	}

	terminal := make(map[string]struct{}, len(terminalActions))
	for _, a := range terminalActions {
		a = strings.TrimSpace(a)
		if a != "" {
			terminal[a] = struct{}{}
		}
	}
	return &Scorer{terminal: terminal}
}

// TerminalActions returns the terminal set, sorted
func (s *Scorer) TerminalActions() []string {
	actions := make([]string, 0, len(s.terminal))
	for a := range s.terminal {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}

// IsTerminal reports whether action belongs to the terminal set
func (s *Scorer) IsTerminal(action string) bool {
	_, ok := s.terminal[action]
	return ok
}

// Score returns count(terminal)/count(all). An empty snapshot yields an
// absent score, never zero and never an error.
func (s *Scorer) Score(events []models.Event) models.Score {
	if len(events) == 0 {
		return models.Absent
	}

	terminal := 0
	for _, e := range events {
		if s.IsTerminal(e.Action) {
			terminal++
		}
	}
	return models.Present(float64(terminal) / float64(len(events)))
}

// ScoreTally computes the same ratio from per-action counts.
func (s *Scorer) ScoreTally(tally models.ActionTally) models.Score {
	total := tally.Total()
	if total == 0 {
		return models.Absent
	}

	var terminal int64
	for _, c := range tally {
		if s.IsTerminal(c.Action) {
			terminal += c.Count
		}
	}
	return models.Present(float64(terminal) / float64(total))
}

// Classify maps a score to its label.
//
//	absent          -> NO_DATA
//	score < 0.20    -> LOW
//	0.20 <= s < 0.5 -> MEDIUM
//	score >= 0.50   -> HIGH
func Classify(score models.Score) models.Label {
	switch {
	case !score.Valid:
		return models.LabelNoData
	case score.Value < MediumThreshold:
		return models.LabelLow
	case score.Value < HighThreshold:
		return models.LabelMedium
	default:
		return models.LabelHigh
	}
}

// Interpretation returns the fixed explanatory sentence for a label.
func Interpretation(label models.Label) string {
	switch label {
	case models.LabelNoData:
		return "Not enough events yet to compute a fragility score. Ingest more user actions and re-run the analysis."
	case models.LabelLow:
		return "Stable behavior: minimal switching/undo patterns."
	case models.LabelMedium:
		return "Moderate switching: some backtracking and revision."
	default:
		return "Frequent switching: high fragility and instability."
	}
}
