package logger

import "github.com/harrison/fragility/internal/models"

// MultiLogger fans every event out to each wrapped logger in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger skips nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

func (m *MultiLogger) LogTrace(msg string) { m.each(func(l Logger) { l.LogTrace(msg) }) }
func (m *MultiLogger) LogDebug(msg string) { m.each(func(l Logger) { l.LogDebug(msg) }) }
func (m *MultiLogger) LogInfo(msg string)  { m.each(func(l Logger) { l.LogInfo(msg) }) }
func (m *MultiLogger) LogWarn(msg string)  { m.each(func(l Logger) { l.LogWarn(msg) }) }
func (m *MultiLogger) LogError(msg string) { m.each(func(l Logger) { l.LogError(msg) }) }

func (m *MultiLogger) LogRunStart(runID string) {
	m.each(func(l Logger) { l.LogRunStart(runID) })
}

func (m *MultiLogger) LogSkippedRows(runID, source string, rows []models.SkippedRow) {
	m.each(func(l Logger) { l.LogSkippedRows(runID, source, rows) })
}

func (m *MultiLogger) LogTallyMismatch(runID string, direct, tally int64) {
	m.each(func(l Logger) { l.LogTallyMismatch(runID, direct, tally) })
}

func (m *MultiLogger) LogReportPersisted(record *models.ReportRecord) {
	m.each(func(l Logger) { l.LogReportPersisted(record) })
}

func (m *MultiLogger) LogPersistFailure(runID string, err error) {
	m.each(func(l Logger) { l.LogPersistFailure(runID, err) })
}

func (m *MultiLogger) LogIngest(events, users int) {
	m.each(func(l Logger) { l.LogIngest(events, users) })
}
