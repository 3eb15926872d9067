package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Transition is the aggregate count of one action directly following another
// within the same user's sequence.
type Transition struct {
	From  string `json:"from_action"`
	To    string `json:"to_action"`
	Count int    `json:"count"`
}

// String renders the transition as "from -> to (count)"
func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s (%d)", t.From, t.To, t.Count)
}

// WindowStep is one event inside an example window
type WindowStep struct {
	EventID int64  `json:"event_id"`
	Action  string `json:"action"`
}

// TransitionExample is a contiguous slice of one user's sequence around a
// single occurrence of a transition. MatchOffset is the index of the "from"
// step inside Window.
type TransitionExample struct {
	Index       int          `json:"example_index"`
	UserID      int64        `json:"user_id"`
	Window      []WindowStep `json:"window"`
	MatchOffset int          `json:"match_offset"`
}

// Actions returns the window's actions in order
func (e TransitionExample) Actions() []string {
	actions := make([]string, len(e.Window))
	for i, step := range e.Window {
		actions[i] = step.Action
	}
	return actions
}

// EventIDs returns the comma-separated event identifiers of the window
func (e TransitionExample) EventIDs() string {
	ids := make([]string, len(e.Window))
	for i, step := range e.Window {
		ids[i] = strconv.FormatInt(step.EventID, 10)
	}
	return strings.Join(ids, ", ")
}

// Sequence renders the window as "a -> b -> c"
func (e TransitionExample) Sequence() string {
	return strings.Join(e.Actions(), " -> ")
}
