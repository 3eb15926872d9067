package analytics

import "github.com/harrison/fragility/internal/models"

// Default window extraction parameters
const (
	DefaultMaxExamples  = 20
	DefaultWindowBefore = 2
	DefaultWindowAfter  = 2
)

// WindowOptions bounds example extraction.
type WindowOptions struct {
	MaxExamples int
	Before      int
	After       int
}

// DefaultWindowOptions returns the standard extraction bounds
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		MaxExamples: DefaultMaxExamples,
		Before:      DefaultWindowBefore,
		After:       DefaultWindowAfter,
	}
}

func (o WindowOptions) normalized() WindowOptions {
	if o.MaxExamples <= 0 {
		o.MaxExamples = DefaultMaxExamples
	}
	if o.Before < 0 {
		o.Before = 0
	}
	if o.After < 0 {
		o.After = 0
	}
	return o
}

// ExtractExamples finds occurrences of from -> to and returns the context
// window around each one.
//
// A match at index i of a user's sequence yields the inclusive window
// [max(0, i-Before), min(n-1, i+After)], clamped to that user's events.
// Users are scanned in ascending user id and positions in ascending order.
// Scanning stops as soon as MaxExamples windows are collected, so when matches
// exceed the cap, low-id users are over-represented. The sample is
// deterministic for a given snapshot but not uniform across users.
//
// A transition that never occurs yields an empty result.
func ExtractExamples(events []models.Event, from, to string, opts WindowOptions) []models.TransitionExample {
	opts = opts.normalized()
	examples := make([]models.TransitionExample, 0)

	for _, seq := range partitionByUser(events) {
		n := len(seq.events)
		for i := 0; i+1 < n; i++ {
			if seq.events[i].Action != from || seq.events[i+1].Action != to {
				continue
			}

			start := max(0, i-opts.Before)
			end := min(n-1, i+opts.After)

			window := make([]models.WindowStep, 0, end-start+1)
			for _, e := range seq.events[start : end+1] {
				window = append(window, models.WindowStep{EventID: e.Position, Action: e.Action})
			}

			examples = append(examples, models.TransitionExample{
				Index:       len(examples) + 1,
				UserID:      seq.userID,
				Window:      window,
				MatchOffset: i - start,
			})
			if len(examples) >= opts.MaxExamples {
				return examples
			}
		}
	}
	return examples
}
