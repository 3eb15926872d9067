// Package memory provides an in-process store for tests and ephemeral runs.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store"
)

// Store keeps events and reports in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	events  []models.EventRow
	reports []models.ReportRecord
	nextPos int64
	nextID  int64
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{nextPos: 1, nextID: 1, now: time.Now}
}

// SetClock replaces the time source used for timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AppendRaw stores rows as given, including malformed ones. A nil position
// is left nil; otherwise the next position counter moves past it.
func (s *Store) AppendRaw(rows ...models.EventRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if r.Position != nil && *r.Position >= s.nextPos {
			s.nextPos = *r.Position + 1
		}
		s.events = append(s.events, r)
	}
}

// ReadEvents returns a copy of every row ordered by user, then position.
func (s *Store) ReadEvents(ctx context.Context) ([]models.EventRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedEvents(), nil
}

// ReadActionTally groups rows by action
func (s *Store) ReadActionTally(ctx context.Context) ([]models.TallyRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally(), nil
}

// ReadSnapshot reads events and tally under one lock
func (s *Store) ReadSnapshot(ctx context.Context) (*models.RawSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &models.RawSnapshot{Events: s.sortedEvents(), Tally: s.tally()}, nil
}

func (s *Store) sortedEvents() []models.EventRow {
	rows := make([]models.EventRow, len(s.events))
	copy(rows, s.events)
	sort.SliceStable(rows, func(i, j int) bool {
		ui, uj := nullInt(rows[i].UserID), nullInt(rows[j].UserID)
		if ui != uj {
			return ui < uj
		}
		return nullInt(rows[i].Position) < nullInt(rows[j].Position)
	})
	return rows
}

// nullInt orders nil before every stored value
func nullInt(p *int64) int64 {
	if p == nil {
		return math.MinInt64
	}
	return *p
}

func (s *Store) tally() []models.TallyRow {
	counts := make(map[string]int64)
	var nullCount int64
	for _, r := range s.events {
		if r.Action == nil {
			nullCount++
			continue
		}
		counts[*r.Action]++
	}

	rows := make([]models.TallyRow, 0, len(counts)+1)
	for action, count := range counts {
		rows = append(rows, models.TallyRow{Action: models.StringPtr(action), Count: models.Int64Ptr(count)})
	}
	if nullCount > 0 {
		rows = append(rows, models.TallyRow{Count: models.Int64Ptr(nullCount)})
	}
	return rows
}

// AppendEvents validates and stores the batch
func (s *Store) AppendEvents(ctx context.Context, events []models.NewEvent) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateBatch(events); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	stored := make([]models.Event, 0, len(events))
	for _, e := range events {
		ev := models.Event{Position: s.nextPos, UserID: e.UserID, Action: e.Action, Timestamp: ts}
		s.nextPos++
		s.events = append(s.events, models.EventRow{
			Position:  models.Int64Ptr(ev.Position),
			UserID:    models.Int64Ptr(ev.UserID),
			Action:    models.StringPtr(ev.Action),
			Timestamp: &ts,
		})
		stored = append(stored, ev)
	}
	return stored, nil
}

// AppendReport stores a copy of record
func (s *Store) AppendReport(ctx context.Context, record models.ReportRecord) (*models.ReportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = s.nextID
	s.nextID++
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.CreatedAt = record.CreatedAt.UTC()
	s.reports = append(s.reports, record)
	return &record, nil
}

// ListReports returns matching records, most recent first
func (s *Store) ListReports(ctx context.Context, query models.HistoryQuery) ([]models.ReportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ReportRecord, 0, len(s.reports))
	for _, r := range s.reports {
		if query.Matches(r.CreatedAt) {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

// GetReport returns the record with id
func (s *Store) GetReport(ctx context.Context, id int64) (*models.ReportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reports {
		if r.ID == id {
			found := r
			return &found, nil
		}
	}
	return nil, store.ErrReportNotFound
}

// Close is a no-op
func (s *Store) Close() error { return nil }
