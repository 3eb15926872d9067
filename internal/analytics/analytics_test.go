package analytics

import (
	"math"
	"testing"

	"github.com/harrison/fragility/internal/models"
)

// ev builds an event; positions double as event ids.
func ev(pos, user int64, action string) models.Event {
	return models.Event{Position: pos, UserID: user, Action: action}
}

// sequence builds one user's events with consecutive positions starting at first.
func sequence(user, first int64, actions ...string) []models.Event {
	events := make([]models.Event, len(actions))
	for i, a := range actions {
		events[i] = ev(first+int64(i), user, a)
	}
	return events
}

func TestScenarioA(t *testing.T) {
	events := sequence(1, 1, "login", "browse", "purchase")

	score := NewScorer().Score(events)
	if !score.Valid {
		t.Fatal("Expected a present score")
	}
	if math.Abs(score.Value-1.0/3.0) > 1e-9 {
		t.Errorf("Expected score 1/3, got %f", score.Value)
	}
	if label := Classify(score); label != models.LabelMedium {
		t.Errorf("Expected MEDIUM, got %s", label)
	}

	table := AnalyzeTransitions(events, 0)
	want := []models.Transition{
		{From: "browse", To: "purchase", Count: 1},
		{From: "login", To: "browse", Count: 1},
	}
	if len(table.Transitions) != len(want) {
		t.Fatalf("Expected %d transitions, got %v", len(want), table.Transitions)
	}
	for i := range want {
		if table.Transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %v, got %v", i, want[i], table.Transitions[i])
		}
	}
}

func TestScenarioBEmptySnapshot(t *testing.T) {
	score := NewScorer().Score(nil)
	if score.Valid {
		t.Errorf("Expected absent score, got %f", score.Value)
	}
	if label := Classify(score); label != models.LabelNoData {
		t.Errorf("Expected NO_DATA, got %s", label)
	}

	table := AnalyzeTransitions(nil, 10)
	if len(table.Transitions) != 0 || table.TotalTransitions != 0 || table.Users != 0 {
		t.Errorf("Expected empty table, got %+v", table)
	}
	if got := ExtractExamples(nil, "login", "logout", DefaultWindowOptions()); len(got) != 0 {
		t.Errorf("Expected no examples, got %d", len(got))
	}
}

func TestScenarioCNoCrossUserTransitions(t *testing.T) {
	events := append(sequence(1, 1, "login", "logout"), sequence(2, 3, "login", "logout")...)

	table := AnalyzeTransitions(events, 0)
	if len(table.Transitions) != 1 {
		t.Fatalf("Expected exactly one transition, got %v", table.Transitions)
	}
	if got := table.Transitions[0]; got != (models.Transition{From: "login", To: "logout", Count: 2}) {
		t.Errorf("Expected login -> logout (2), got %s", got)
	}
	if table.Has("logout", "login") {
		t.Error("Transition must not cross users")
	}
}

func TestScenarioDAbsentTransition(t *testing.T) {
	events := append(sequence(1, 1, "login", "browse", "refund"), sequence(2, 4, "login", "purchase")...)

	got := ExtractExamples(events, "refund", "login", DefaultWindowOptions())
	if got == nil {
		t.Fatal("Expected an empty, non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("Expected zero examples, got %d", len(got))
	}
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		score models.Score
		want  models.Label
	}{
		{"absent", models.Absent, models.LabelNoData},
		{"zero", models.Present(0), models.LabelLow},
		{"just below 0.20", models.Present(math.Nextafter(0.20, 0)), models.LabelLow},
		{"exactly 0.20", models.Present(0.20), models.LabelMedium},
		{"just below 0.50", models.Present(math.Nextafter(0.50, 0)), models.LabelMedium},
		{"exactly 0.50", models.Present(0.50), models.LabelHigh},
		{"one", models.Present(1), models.LabelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.score); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
			}
		})
	}
}

func TestScoreRangeAndTallyAgreement(t *testing.T) {
	snapshots := [][]models.Event{
		sequence(1, 1, "login"),
		sequence(1, 1, "purchase", "logout"),
		append(sequence(1, 1, "login", "browse", "cancel"), sequence(7, 4, "purchase", "refund")...),
		sequence(3, 10, "browse", "browse", "browse", "add_to_cart", "logout"),
	}

	scorer := NewScorer()
	for i, events := range snapshots {
		direct := scorer.Score(events)
		if !direct.Valid || direct.Value < 0 || direct.Value > 1 {
			t.Errorf("snapshot %d: score %v outside [0,1]", i, direct)
		}

		tally := TallyEvents(events)
		if tally.Total() != int64(len(events)) {
			t.Errorf("snapshot %d: tally total %d, direct count %d", i, tally.Total(), len(events))
		}
		if fromTally := scorer.ScoreTally(tally); fromTally != direct {
			t.Errorf("snapshot %d: tally score %v, direct score %v", i, fromTally, direct)
		}
	}
}

func TestCustomTerminalSet(t *testing.T) {
	scorer := NewScorer("cancel", " refund ", "")
	events := sequence(1, 1, "cancel", "purchase", "refund", "login")

	score := scorer.Score(events)
	if score.Value != 0.5 {
		t.Errorf("Expected 0.5, got %f", score.Value)
	}
	if got := scorer.TerminalActions(); len(got) != 2 || got[0] != "cancel" || got[1] != "refund" {
		t.Errorf("Unexpected terminal set %v", got)
	}
}

func TestInterpretation(t *testing.T) {
	seen := make(map[string]bool)
	for _, label := range []models.Label{models.LabelLow, models.LabelMedium, models.LabelHigh, models.LabelNoData} {
		text := Interpretation(label)
		if text == "" {
			t.Errorf("Empty interpretation for %s", label)
		}
		if seen[text] {
			t.Errorf("Duplicate interpretation for %s", label)
		}
		seen[text] = true
	}
}

func TestTransitionsPerUserCount(t *testing.T) {
	events := append(sequence(1, 1, "login", "browse", "browse", "purchase"), sequence(2, 5, "login")...)
	events = append(events, sequence(3, 6, "browse", "logout")...)

	table := AnalyzeTransitions(events, 0)
	// (4-1) + 0 + (2-1)
	if table.TotalTransitions != 4 {
		t.Errorf("Expected 4 transitions, got %d", table.TotalTransitions)
	}
	if table.Users != 3 {
		t.Errorf("Expected 3 users, got %d", table.Users)
	}

	sum := 0
	for _, tr := range table.Transitions {
		sum += tr.Count
	}
	if sum != table.TotalTransitions {
		t.Errorf("Counts sum to %d, total is %d", sum, table.TotalTransitions)
	}
}

func TestTransitionsUnsortedInput(t *testing.T) {
	events := []models.Event{
		ev(3, 1, "purchase"),
		ev(9, 2, "logout"),
		ev(1, 1, "login"),
		ev(8, 2, "login"),
		ev(2, 1, "browse"),
	}

	table := AnalyzeTransitions(events, 0)
	for _, want := range []models.Transition{
		{From: "login", To: "browse", Count: 1},
		{From: "browse", To: "purchase", Count: 1},
		{From: "login", To: "logout", Count: 1},
	} {
		if !table.Has(want.From, want.To) {
			t.Errorf("Missing transition %s", want)
		}
	}
	if table.TotalTransitions != 3 {
		t.Errorf("Expected 3 transitions, got %d", table.TotalTransitions)
	}
}

func TestTransitionTieBreakAndLimit(t *testing.T) {
	events := append(sequence(1, 1, "b", "a", "c", "a"), sequence(2, 5, "a", "c")...)
	// a->c:2, b->a:1, c->a:1

	for run := 0; run < 20; run++ {
		table := AnalyzeTransitions(events, 0)
		want := []models.Transition{
			{From: "a", To: "c", Count: 2},
			{From: "b", To: "a", Count: 1},
			{From: "c", To: "a", Count: 1},
		}
		if len(table.Transitions) != len(want) {
			t.Fatalf("Expected %d transitions, got %v", len(want), table.Transitions)
		}
		for i := range want {
			if table.Transitions[i] != want[i] {
				t.Fatalf("run %d position %d: expected %s, got %s", run, i, want[i], table.Transitions[i])
			}
		}
	}

	limited := AnalyzeTransitions(events, 2)
	if len(limited.Transitions) != 2 {
		t.Errorf("Expected 2 transitions after limit, got %d", len(limited.Transitions))
	}
	if limited.TotalTransitions != 4 || limited.Distinct != 3 {
		t.Errorf("Totals must be computed before truncation, got %+v", limited)
	}
}

func TestTransitionMatrix(t *testing.T) {
	events := sequence(1, 1, "login", "browse", "login", "logout")
	matrix := AnalyzeTransitions(events, 0).Matrix()

	if len(matrix.From) != 2 || matrix.From[0] != "browse" || matrix.From[1] != "login" {
		t.Fatalf("Unexpected rows %v", matrix.From)
	}
	if len(matrix.To) != 3 {
		t.Fatalf("Unexpected columns %v", matrix.To)
	}
	// rows: browse, login; cols: browse, login, logout
	if matrix.Counts[0][1] != 1 || matrix.Counts[1][0] != 1 || matrix.Counts[1][2] != 1 {
		t.Errorf("Unexpected counts %v", matrix.Counts)
	}
	if matrix.Counts[0][0] != 0 {
		t.Errorf("Expected empty cell, got %d", matrix.Counts[0][0])
	}
}

func TestExtractExamplesClamping(t *testing.T) {
	events := sequence(1, 100, "login", "browse", "add_to_cart", "purchase", "logout")

	tests := []struct {
		name       string
		from, to   string
		opts       WindowOptions
		wantIDs    string
		wantOffset int
	}{
		{"clamped at start", "login", "browse", DefaultWindowOptions(), "100, 101, 102", 0},
		{"full window", "browse", "add_to_cart", WindowOptions{Before: 1, After: 2}, "100, 101, 102, 103", 1},
		{"clamped at end", "purchase", "logout", DefaultWindowOptions(), "101, 102, 103, 104", 2},
		{"negative windows clamp to zero", "add_to_cart", "purchase", WindowOptions{Before: -3, After: -1}, "102", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractExamples(events, tt.from, tt.to, tt.opts)
			if len(got) != 1 {
				t.Fatalf("Expected 1 example, got %d", len(got))
			}
			if got[0].EventIDs() != tt.wantIDs {
				t.Errorf("Expected ids %q, got %q", tt.wantIDs, got[0].EventIDs())
			}
			if got[0].MatchOffset != tt.wantOffset {
				t.Errorf("Expected match offset %d, got %d", tt.wantOffset, got[0].MatchOffset)
			}
			if got[0].Index != 1 || got[0].UserID != 1 {
				t.Errorf("Unexpected example header %+v", got[0])
			}
		})
	}
}

func TestExtractExamplesWindowBound(t *testing.T) {
	var events []models.Event
	for u := int64(1); u <= 5; u++ {
		events = append(events, sequence(u, u*100, "login", "browse", "login", "browse", "login", "browse")...)
	}

	opts := WindowOptions{MaxExamples: 100, Before: 2, After: 1}
	got := ExtractExamples(events, "login", "browse", opts)
	if len(got) != 15 {
		t.Fatalf("Expected 15 examples, got %d", len(got))
	}
	for _, ex := range got {
		if len(ex.Window) > opts.Before+opts.After+1 {
			t.Errorf("Window %s exceeds bound", ex.Sequence())
		}
		if ex.Window[ex.MatchOffset].Action != "login" {
			t.Errorf("Match offset does not point at the from action in %s", ex.Sequence())
		}
	}
}

func TestExtractExamplesCapAndOrder(t *testing.T) {
	var events []models.Event
	// Insert users in descending order to check that scanning is by ascending id.
	for u := int64(6); u >= 1; u-- {
		events = append(events, sequence(u, u*10, "browse", "cancel", "browse", "cancel")...)
	}

	got := ExtractExamples(events, "browse", "cancel", WindowOptions{MaxExamples: 5, Before: 1, After: 1})
	if len(got) != 5 {
		t.Fatalf("Expected cap of 5, got %d", len(got))
	}

	wantUsers := []int64{1, 1, 2, 2, 3}
	for i, ex := range got {
		if ex.Index != i+1 {
			t.Errorf("Expected index %d, got %d", i+1, ex.Index)
		}
		if ex.UserID != wantUsers[i] {
			t.Errorf("Example %d: expected user %d, got %d", i, wantUsers[i], ex.UserID)
		}
	}
	if got[0].Sequence() != "browse -> cancel" {
		t.Errorf("Unexpected first window %q", got[0].Sequence())
	}
}

func TestExtractExamplesDefaultCap(t *testing.T) {
	var events []models.Event
	for u := int64(1); u <= 30; u++ {
		events = append(events, sequence(u, u*10, "login", "logout")...)
	}

	if got := ExtractExamples(events, "login", "logout", WindowOptions{}); len(got) != DefaultMaxExamples {
		t.Errorf("Expected default cap %d, got %d", DefaultMaxExamples, len(got))
	}
}

func TestSequenceStats(t *testing.T) {
	events := append(sequence(1, 1, "login", "browse", "logout"), sequence(2, 4, "login")...)
	events = append(events, sequence(3, 5, "login", "logout")...)

	s, err := SequenceStats(events)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Users != 3 || s.Events != 6 {
		t.Errorf("Unexpected counts %+v", s)
	}
	if s.Mean != 2 || s.Median != 2 || s.Min != 1 || s.Max != 3 {
		t.Errorf("Unexpected stats %+v", s)
	}
	if s.P90 != 2.5 {
		t.Errorf("Expected p90 2.5, got %f", s.P90)
	}

	empty, err := SequenceStats(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if empty.Users != 0 || empty.Mean != 0 {
		t.Errorf("Expected zero stats, got %+v", empty)
	}
}
