// Package report builds, renders and persists fragility reports.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/fragility/internal/analytics"
	"github.com/harrison/fragility/internal/models"
)

// SnapshotReader supplies one consistent read of events and tally
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context) (*models.RawSnapshot, error)
}

// ReportAppender persists a finished report
type ReportAppender interface {
	AppendReport(ctx context.Context, record models.ReportRecord) (*models.ReportRecord, error)
}

// Logger receives the builder's progress events
type Logger interface {
	LogRunStart(runID string)
	LogSkippedRows(runID, source string, rows []models.SkippedRow)
	LogTallyMismatch(runID string, direct, tally int64)
	LogReportPersisted(record *models.ReportRecord)
	LogPersistFailure(runID string, err error)
}

// Recorder receives build metrics
type Recorder interface {
	ObserveBuild(label models.Label, duration time.Duration)
	IncReadFailure()
	IncPersistFailure()
}

// Builder orchestrates one analysis run: read, score, render, persist.
// It holds no state between runs.
type Builder struct {
	reader   SnapshotReader
	appender ReportAppender
	scorer   *analytics.Scorer
	logger   Logger
	recorder Recorder
	source   string
	now      func() time.Time
	newRunID func() string
}

// Option configures a Builder
type Option func(*Builder)

// WithScorer replaces the default terminal-set scorer
func WithScorer(s *analytics.Scorer) Option {
	return func(b *Builder) { b.scorer = s }
}

// WithLogger sets the progress logger
func WithLogger(l Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithSourceName names the event store in read errors
func WithSourceName(name string) Option {
	return func(b *Builder) { b.source = name }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRunIDs replaces the uuid run id generator
func WithRunIDs(next func() string) Option {
	return func(b *Builder) { b.newRunID = next }
}

// NewBuilder creates a Builder reading from reader and appending to appender.
func NewBuilder(reader SnapshotReader, appender ReportAppender, opts ...Option) *Builder {
	b := &Builder{
		reader:   reader,
		appender: appender,
		scorer:   analytics.NewScorer(),
		logger:   nopLogger{},
		recorder: nopRecorder{},
		source:   "event store",
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is the outcome of a successful run
type Result struct {
	Record        *models.ReportRecord
	Summary       Summary
	DirectTotal   int64
	SkippedEvents []models.SkippedRow
	SkippedTally  []models.SkippedRow
}

// Build runs one analysis. Events and tally come from the same snapshot;
// the tally supplies total_events and the displayed counts while the score
// is computed from the events directly.
//
// A read failure returns *ReadError. A persist failure returns *PersistError
// carrying the computed record.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := b.now()
	runID := b.newRunID()
	b.logger.LogRunStart(runID)

	raw, err := b.reader.ReadSnapshot(ctx)
	if err != nil {
		b.recorder.IncReadFailure()
		return nil, &ReadError{Source: b.source, Err: err}
	}

	tally, skippedTally := analytics.NormalizeTally(raw.Tally)
	if len(skippedTally) > 0 {
		b.logger.LogSkippedRows(runID, "tally", skippedTally)
	}

	events, skippedEvents := analytics.NormalizeEvents(raw.Events)
	if len(skippedEvents) > 0 {
		b.logger.LogSkippedRows(runID, "events", skippedEvents)
	}

	score := b.scorer.Score(events)
	label := analytics.Classify(score)

	total := tally.Total()
	direct := int64(len(events))
	if direct != total {
		b.logger.LogTallyMismatch(runID, direct, total)
	}

	summary := Summary{
		TotalEvents:   total,
		Score:         score,
		Label:         label,
		SkippedRows:   len(skippedTally),
		SkippedEvents: len(skippedEvents),
		Tally:         tally,
	}

	record := models.ReportRecord{
		RunID:          runID,
		CreatedAt:      b.now().UTC(),
		TotalEvents:    total,
		FragilityLabel: label,
		SkippedRows:    len(skippedTally),
		SkippedEvents:  len(skippedEvents),
		Details:        RenderText(summary),
	}
	if score.Valid {
		record.FragilityScore = score.Value
	}

	stored, err := b.appender.AppendReport(ctx, record)
	if err != nil {
		b.recorder.IncPersistFailure()
		b.logger.LogPersistFailure(runID, err)
		return nil, &PersistError{Record: &record, Err: err}
	}

	b.logger.LogReportPersisted(stored)
	b.recorder.ObserveBuild(label, b.now().Sub(start))

	return &Result{
		Record:        stored,
		Summary:       summary,
		DirectTotal:   direct,
		SkippedEvents: skippedEvents,
		SkippedTally:  skippedTally,
	}, nil
}

type nopLogger struct{}

func (nopLogger) LogRunStart(string)                                 {}
func (nopLogger) LogSkippedRows(string, string, []models.SkippedRow) {}
func (nopLogger) LogTallyMismatch(string, int64, int64)              {}
func (nopLogger) LogReportPersisted(*models.ReportRecord)            {}
func (nopLogger) LogPersistFailure(string, error)                    {}

type nopRecorder struct{}

func (nopRecorder) ObserveBuild(models.Label, time.Duration) {}
func (nopRecorder) IncReadFailure()                          {}
func (nopRecorder) IncPersistFailure()                       {}
