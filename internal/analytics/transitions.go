package analytics

import (
	"sort"

	"github.com/harrison/fragility/internal/models"
)

// DefaultTransitionLimit is the number of transitions kept when no limit is given
const DefaultTransitionLimit = 50

// TransitionTable is the ranked first-order transition aggregate of a snapshot.
type TransitionTable struct {
	// Transitions holds the top entries, count desc then from asc then to asc.
	Transitions []models.Transition `json:"transitions"`
	// TotalTransitions counts every consecutive pair before truncation.
	TotalTransitions int `json:"total_transitions"`
	// Distinct is the number of distinct (from, to) pairs before truncation.
	Distinct int `json:"distinct"`
	// Users is the number of user partitions in the snapshot.
	Users int `json:"users"`
}

type transitionKey struct {
	from string
	to   string
}

// AnalyzeTransitions counts action -> next action pairs within each user's
// sequence. A user with N events contributes exactly N-1 pairs and no pair
// crosses users. A limit <= 0 selects DefaultTransitionLimit.
func AnalyzeTransitions(events []models.Event, limit int) *TransitionTable {
	if limit <= 0 {
		limit = DefaultTransitionLimit
	}

	counts := make(map[transitionKey]int)
	table := &TransitionTable{}

	for _, seq := range partitionByUser(events) {
		table.Users++
		for i := 0; i+1 < len(seq.events); i++ {
			counts[transitionKey{from: seq.events[i].Action, to: seq.events[i+1].Action}]++
			table.TotalTransitions++
		}
	}

	ranked := make([]models.Transition, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, models.Transition{From: k.from, To: k.to, Count: c})
	}
	sortTransitions(ranked)

	table.Distinct = len(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	table.Transitions = ranked
	return table
}

func sortTransitions(ts []models.Transition) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Count != ts[j].Count {
			return ts[i].Count > ts[j].Count
		}
		if ts[i].From != ts[j].From {
			return ts[i].From < ts[j].From
		}
		return ts[i].To < ts[j].To
	})
}

// Has reports whether the retained table contains from -> to
func (t *TransitionTable) Has(from, to string) bool {
	for _, tr := range t.Transitions {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

// TransitionMatrix is a dense from x to view of retained transitions.
type TransitionMatrix struct {
	From   []string `json:"from"`
	To     []string `json:"to"`
	Counts [][]int  `json:"counts"`
}

// Matrix lays the retained transitions out as a grid. Rows and columns are
// sorted by action; cells with no transition hold zero.
func (t *TransitionTable) Matrix() *TransitionMatrix {
	fromIdx := make(map[string]int)
	toIdx := make(map[string]int)
	var from, to []string

	for _, tr := range t.Transitions {
		if _, ok := fromIdx[tr.From]; !ok {
			fromIdx[tr.From] = 0
			from = append(from, tr.From)
		}
		if _, ok := toIdx[tr.To]; !ok {
			toIdx[tr.To] = 0
			to = append(to, tr.To)
		}
	}
	sort.Strings(from)
	sort.Strings(to)
	for i, a := range from {
		fromIdx[a] = i
	}
	for i, a := range to {
		toIdx[a] = i
	}

	counts := make([][]int, len(from))
	for i := range counts {
		counts[i] = make([]int, len(to))
	}
	for _, tr := range t.Transitions {
		counts[fromIdx[tr.From]][toIdx[tr.To]] = tr.Count
	}

	return &TransitionMatrix{From: from, To: to, Counts: counts}
}
