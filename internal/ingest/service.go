package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store"
)

// Appender is the write side of the event store
type Appender interface {
	AppendEvents(ctx context.Context, events []models.NewEvent) ([]models.Event, error)
}

// Logger receives ingestion events
type Logger interface {
	LogIngest(events, users int)
}

// Recorder counts appended events
type Recorder interface {
	ObserveIngest(events []models.Event)
}

// Service validates actions against the vocabulary and appends them.
type Service struct {
	appender Appender
	vocab    Vocabulary
	logger   Logger
	recorder Recorder
}

// NewService creates an ingestion service. logger and recorder may be nil.
func NewService(appender Appender, vocab Vocabulary, logger Logger, recorder Recorder) *Service {
	return &Service{appender: appender, vocab: vocab, logger: logger, recorder: recorder}
}

// Vocabulary returns the accepted actions
func (s *Service) Vocabulary() Vocabulary { return s.vocab }

// AddOne appends a single action for userID
func (s *Service) AddOne(ctx context.Context, userID int64, action string) (*models.Event, error) {
	stored, err := s.AddBulk(ctx, []models.NewEvent{{UserID: userID, Action: action}})
	if err != nil {
		return nil, err
	}
	return &stored[0], nil
}

// AddBulk validates every event and appends the batch atomically.
// Nothing is stored if any event is invalid.
func (s *Service) AddBulk(ctx context.Context, events []models.NewEvent) ([]models.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	batch := make([]models.NewEvent, len(events))
	for i, e := range events {
		e.Action = strings.TrimSpace(e.Action)
		batch[i] = e
	}
	if err := store.ValidateBatch(batch); err != nil {
		return nil, err
	}
	for i, e := range batch {
		if err := s.vocab.Check(e.Action); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}

	stored, err := s.appender.AppendEvents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("append events: %w", err)
	}

	if s.recorder != nil {
		s.recorder.ObserveIngest(stored)
	}
	if s.logger != nil {
		s.logger.LogIngest(len(stored), distinctUsers(stored))
	}
	return stored, nil
}

// Seed generates and appends a synthetic batch
func (s *Service) Seed(ctx context.Context, gen *Generator, users, eventsPerUser int) ([]models.Event, error) {
	return s.AddBulk(ctx, gen.Generate(users, eventsPerUser))
}

func distinctUsers(events []models.Event) int {
	users := make(map[int64]struct{})
	for _, e := range events {
		users[e.UserID] = struct{}{}
	}
	return len(users)
}
