package models

import (
	"errors"
	"strings"
	"time"
)

// Event is one user action read from the event store.
// Position is assigned by the store on append; it is globally monotonic, so it
// also orders a single user's events and doubles as the event identifier.
type Event struct {
	Position  int64     `json:"position" db:"position"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
}

// NewEvent is an append request. Position and timestamp are assigned by the store.
type NewEvent struct {
	UserID int64  `json:"user_id"`
	Action string `json:"action"`
}

// Validate checks that the append request can be stored
func (e NewEvent) Validate() error {
	if e.UserID <= 0 {
		return errors.New("user_id must be positive")
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("action is required")
	}
	return nil
}

// EventRow is an event exactly as scanned from a store, with nullable columns.
type EventRow struct {
	Position  *int64     `db:"position"`
	UserID    *int64     `db:"user_id"`
	Action    *string    `db:"action"`
	Timestamp *time.Time `db:"ts"`
}

// TallyRow is one per-action aggregate as scanned from a store.
type TallyRow struct {
	Action *string `db:"action"`
	Count  *int64  `db:"count"`
}

// ActionCount is a validated tally entry
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// ActionTally maps action -> count over one snapshot, sorted by action.
type ActionTally []ActionCount

// Total sums all counts in the tally
func (t ActionTally) Total() int64 {
	var total int64
	for _, c := range t {
		total += c.Count
	}
	return total
}

// SkippedRow records a row dropped during normalization
type SkippedRow struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// RawSnapshot is a single consistent read of the event store.
type RawSnapshot struct {
	Events []EventRow
	Tally  []TallyRow
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 { return &v }

// StringPtr returns a pointer to v
func StringPtr(v string) *string { return &v }
