// Package ingest appends user actions to the event store, one at a time or
// as synthetic batches drawn from a weighted action vocabulary.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned for actions outside the vocabulary
var ErrUnknownAction = errors.New("unknown action")

// Vocabulary is the closed set of actions with their sampling weights.
type Vocabulary struct {
	Actions []string
	Weights []int
}

// DefaultVocabulary returns the standard action set. Weights favour
// routine actions over terminal and reversal ones.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Actions: []string{"login", "browse", "add_to_cart", "purchase", "logout", "cancel", "refund"},
		Weights: []int{25, 25, 15, 10, 10, 8, 7},
	}
}

// Validate checks that the vocabulary can be sampled
func (v Vocabulary) Validate() error {
	if len(v.Actions) == 0 {
		return errors.New("vocabulary has no actions")
	}
	if len(v.Weights) != len(v.Actions) {
		return fmt.Errorf("vocabulary has %d actions but %d weights", len(v.Actions), len(v.Weights))
	}

	seen := make(map[string]bool, len(v.Actions))
	total := 0
	for i, a := range v.Actions {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("action %d is blank", i)
		}
		if seen[a] {
			return fmt.Errorf("duplicate action %q", a)
		}
		seen[a] = true
		if v.Weights[i] < 0 {
			return fmt.Errorf("action %q has negative weight", a)
		}
		total += v.Weights[i]
	}
	if total == 0 {
		return errors.New("vocabulary weights sum to zero")
	}
	return nil
}

// Contains reports whether action belongs to the vocabulary
func (v Vocabulary) Contains(action string) bool {
	for _, a := range v.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Check returns ErrUnknownAction when action is outside the vocabulary
func (v Vocabulary) Check(action string) error {
	if !v.Contains(action) {
		return fmt.Errorf("%w %q (expected one of: %s)", ErrUnknownAction, action, strings.Join(v.Actions, ", "))
	}
	return nil
}
