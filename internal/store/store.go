// Package store defines the persistence ports of the fragility engine: an
// append-only event log and an append-only report history.
//
// Adapters live in subpackages (sqlite, postgres, memory). Every adapter is
// verified against the shared contract in storetest.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrison/fragility/internal/models"
)

// Sentinel errors returned by adapters
var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidEvent   = errors.New("invalid event")
)

// EventStore is the append-only user action log.
type EventStore interface {
	// ReadEvents returns every event ordered by user, then position.
	// Rows are returned as stored; callers normalize them.
	ReadEvents(ctx context.Context) ([]models.EventRow, error)

	// ReadActionTally returns one row per distinct action. Order is irrelevant.
	ReadActionTally(ctx context.Context) ([]models.TallyRow, error)

	// ReadSnapshot returns events and tally from a single read transaction.
	ReadSnapshot(ctx context.Context) (*models.RawSnapshot, error)

	// AppendEvents stores the batch atomically, assigning position and
	// timestamp to each event. An invalid event rejects the whole batch
	// with ErrInvalidEvent.
	AppendEvents(ctx context.Context, events []models.NewEvent) ([]models.Event, error)
}

// ReportStore is the append-only analysis history.
type ReportStore interface {
	// AppendReport stores an immutable record, assigning ID and, when
	// zero, CreatedAt. The stored record is returned.
	AppendReport(ctx context.Context, record models.ReportRecord) (*models.ReportRecord, error)

	// ListReports returns records most recent first, bounded by the query.
	ListReports(ctx context.Context, query models.HistoryQuery) ([]models.ReportRecord, error)

	// GetReport returns one record or ErrReportNotFound.
	GetReport(ctx context.Context, id int64) (*models.ReportRecord, error)
}

// Store is a backend that holds both the event log and the report history.
type Store interface {
	EventStore
	ReportStore
	Close() error
}

// ValidateBatch checks every event of an append batch.
func ValidateBatch(events []models.NewEvent) error {
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return &BatchError{Index: i, Err: err}
		}
	}
	return nil
}

// BatchError identifies the first invalid event of a batch.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("event %d: %v", e.Index, e.Err)
}

// Unwrap exposes ErrInvalidEvent and the validation cause
func (e *BatchError) Unwrap() []error {
	return []error{ErrInvalidEvent, e.Err}
}
