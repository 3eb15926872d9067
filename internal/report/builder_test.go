package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store/memory"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func testBuilder(reader SnapshotReader, appender ReportAppender, log *recordingLogger) *Builder {
	return NewBuilder(reader, appender,
		WithLogger(log),
		WithClock(func() time.Time { return fixedTime }),
		WithRunIDs(func() string { return "run-a" }),
	)
}

// recordingLogger captures builder events
type recordingLogger struct {
	mu         sync.Mutex
	started    []string
	skipped    map[string]int
	mismatches [][2]int64
	persisted  []*models.ReportRecord
	failures   []error
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{skipped: make(map[string]int)}
}

func (l *recordingLogger) LogRunStart(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, runID)
}

func (l *recordingLogger) LogSkippedRows(_ string, source string, rows []models.SkippedRow) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.skipped[source] += len(rows)
}

func (l *recordingLogger) LogTallyMismatch(_ string, direct, tally int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mismatches = append(l.mismatches, [2]int64{direct, tally})
}

func (l *recordingLogger) LogReportPersisted(r *models.ReportRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persisted = append(l.persisted, r)
}

func (l *recordingLogger) LogPersistFailure(_ string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, err)
}

type failingReader struct{ err error }

func (f failingReader) ReadSnapshot(context.Context) (*models.RawSnapshot, error) {
	return nil, f.err
}

type failingAppender struct {
	err   error
	calls int
}

func (f *failingAppender) AppendReport(context.Context, models.ReportRecord) (*models.ReportRecord, error) {
	f.calls++
	return nil, f.err
}

func appendActions(t *testing.T, s *memory.Store, events ...models.NewEvent) {
	t.Helper()
	_, err := s.AppendEvents(context.Background(), events)
	require.NoError(t, err)
}

func TestBuild_ScenarioA(t *testing.T) {
	s := memory.New()
	appendActions(t, s,
		models.NewEvent{UserID: 1, Action: "login"},
		models.NewEvent{UserID: 1, Action: "browse"},
		models.NewEvent{UserID: 1, Action: "purchase"},
	)
	log := newRecordingLogger()

	result, err := testBuilder(s, s, log).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.LabelMedium, result.Record.FragilityLabel)
	assert.InDelta(t, 1.0/3.0, result.Record.FragilityScore, 1e-9)
	assert.Equal(t, int64(3), result.Record.TotalEvents)
	assert.Equal(t, int64(3), result.DirectTotal)
	assert.Equal(t, "run-a", result.Record.RunID)
	assert.NotZero(t, result.Record.ID)
	assert.Empty(t, log.mismatches)
	assert.Equal(t, []string{"run-a"}, log.started)
	require.Len(t, log.persisted, 1)

	newGolden(t).Assert(t, "scenario_a", []byte(result.Record.Details))

	history, err := s.ListReports(context.Background(), models.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, result.Record.Details, history[0].Details)
}

func TestBuild_ScenarioBNoData(t *testing.T) {
	s := memory.New()

	result, err := testBuilder(s, s, newRecordingLogger()).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.LabelNoData, result.Record.FragilityLabel)
	assert.Equal(t, 0.0, result.Record.FragilityScore)
	assert.False(t, result.Summary.Score.Valid)
	assert.False(t, result.Record.Score().Valid)
	assert.Contains(t, result.Record.Details, NoScoreMarker)
	assert.Contains(t, result.Record.Details, NoEventsLine)

	newGolden(t).Assert(t, "no_data", []byte(result.Record.Details))
}

func TestBuild_MalformedRowsAreSkippedAndCounted(t *testing.T) {
	s := memory.New()
	s.AppendRaw(
		models.EventRow{Position: models.Int64Ptr(1), UserID: models.Int64Ptr(1), Action: models.StringPtr("login")},
		models.EventRow{Position: models.Int64Ptr(2), UserID: models.Int64Ptr(1), Action: models.StringPtr("purchase")},
		models.EventRow{Position: models.Int64Ptr(3), Action: models.StringPtr("browse")},
		models.EventRow{Position: models.Int64Ptr(4), UserID: models.Int64Ptr(1)},
	)
	log := newRecordingLogger()

	result, err := testBuilder(s, s, log).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Record.SkippedRows)
	assert.Equal(t, 2, result.Record.SkippedEvents)
	assert.Len(t, result.SkippedTally, 1)
	assert.Len(t, result.SkippedEvents, 2)
	assert.Equal(t, int64(3), result.Record.TotalEvents)
	assert.Equal(t, models.LabelHigh, result.Record.FragilityLabel)
	assert.Equal(t, map[string]int{"tally": 1, "events": 2}, log.skipped)
	assert.Equal(t, [][2]int64{{2, 3}}, log.mismatches)

	newGolden(t).Assert(t, "skipped_rows", []byte(result.Record.Details))
}

func TestBuild_SkippedEventRowsAreStoredWithTheReport(t *testing.T) {
	s := memory.New()
	s.AppendRaw(
		models.EventRow{Position: models.Int64Ptr(1), UserID: models.Int64Ptr(1), Action: models.StringPtr("login")},
		models.EventRow{Position: models.Int64Ptr(2), UserID: models.Int64Ptr(1), Action: models.StringPtr("browse")},
		models.EventRow{Position: models.Int64Ptr(3), UserID: models.Int64Ptr(1), Action: models.StringPtr("purchase")},
		models.EventRow{Position: models.Int64Ptr(4), Action: models.StringPtr("browse")},
	)

	result, err := testBuilder(s, s, newRecordingLogger()).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.Record.TotalEvents)
	assert.InDelta(t, 1.0/3.0, result.Record.FragilityScore, 1e-9)
	assert.Equal(t, 0, result.Record.SkippedRows)
	assert.Equal(t, 1, result.Record.SkippedEvents)
	assert.Contains(t, result.Record.Details, "Skipped event rows    : 1")

	stored, err := s.GetReport(context.Background(), result.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.SkippedEvents)

	parsed, err := ParseText(stored.Details)
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.SkippedEvents)
}

func TestBuild_ReadFailure(t *testing.T) {
	boom := errors.New("connection refused")
	appender := &failingAppender{}

	_, err := testBuilder(failingReader{err: boom}, appender, newRecordingLogger()).Build(context.Background())
	require.Error(t, err)

	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "could not read data")

	var persistErr *PersistError
	assert.False(t, errors.As(err, &persistErr))
	assert.Zero(t, appender.calls)
}

func TestBuild_PersistFailureKeepsReport(t *testing.T) {
	s := memory.New()
	appendActions(t, s,
		models.NewEvent{UserID: 1, Action: "login"},
		models.NewEvent{UserID: 1, Action: "logout"},
	)
	boom := errors.New("disk full")
	appender := &failingAppender{err: boom}
	log := newRecordingLogger()

	result, err := testBuilder(s, appender, log).Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)

	var persistErr *PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "could not persist result")

	require.NotNil(t, persistErr.Record)
	assert.Equal(t, models.LabelHigh, persistErr.Record.FragilityLabel)
	assert.Contains(t, persistErr.Record.Details, "Classification        : HIGH")
	assert.Equal(t, 1, appender.calls)
	assert.Len(t, log.failures, 1)
	assert.Empty(t, log.persisted)

	var readErr *ReadError
	assert.False(t, errors.As(err, &readErr))
}

func TestBuild_CustomTerminalSetAndDefaults(t *testing.T) {
	s := memory.New()
	appendActions(t, s, models.NewEvent{UserID: 1, Action: "login"})

	result, err := NewBuilder(s, s).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.LabelLow, result.Record.FragilityLabel)
	assert.NotEmpty(t, result.Record.RunID)
	assert.False(t, result.Record.CreatedAt.IsZero())
}
