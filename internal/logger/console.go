// Package logger provides logging implementations for fragility runs.
//
// Loggers report report-builder progress, skipped rows and ingest batches
// with [HH:MM:SS] [LEVEL] prefixes. Implementations are thread-safe and
// support console and file destinations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/fragility/internal/models"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the full set of events fragility components emit.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)

	LogRunStart(runID string)
	LogSkippedRows(runID, source string, rows []models.SkippedRow)
	LogTallyMismatch(runID string, direct, tally int64)
	LogReportPersisted(record *models.ReportRecord)
	LogPersistFailure(runID string, err error)
	LogIngest(events, users int)
}

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// Color output is enabled when writing to a terminal on os.Stdout/os.Stderr.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a colour-capable TTY.
// NO_COLOR and non-file writers disable colour.
func isTerminal(w io.Writer) bool {
	if w == nil || color.NoColor {
		return false
	}
	if w != os.Stdout && w != os.Stderr {
		return false
	}
	fd := w.(*os.File).Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if _, ok := levelValues[normalized]; ok {
		return normalized
	}
	return "info"
}

var levelValues = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	if v, ok := levelValues[level]; ok {
		return v
	}
	return levelInfo
}

func shouldLog(configured, message string) bool {
	return logLevelToInt(strings.ToLower(message)) >= logLevelToInt(configured)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) { cl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) { cl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

// LogRunStart marks the start of a report build.
func (cl *ConsoleLogger) LogRunStart(runID string) {
	cl.logWithLevel("DEBUG", formatRunStart(runID))
}

// LogSkippedRows reports malformed rows dropped during normalization,
// one summary line at warn and one line per row at debug.
func (cl *ConsoleLogger) LogSkippedRows(runID, source string, rows []models.SkippedRow) {
	if len(rows) == 0 {
		return
	}
	cl.logWithLevel("WARN", formatSkippedSummary(runID, source, len(rows)))
	for _, row := range rows {
		cl.logWithLevel("DEBUG", formatSkippedRow(source, row))
	}
}

// LogTallyMismatch warns when the direct event count disagrees with the tally sum.
func (cl *ConsoleLogger) LogTallyMismatch(runID string, direct, tally int64) {
	cl.logWithLevel("WARN", formatTallyMismatch(runID, direct, tally))
}

// LogReportPersisted logs the stored report with a coloured label.
func (cl *ConsoleLogger) LogReportPersisted(record *models.ReportRecord) {
	if record == nil {
		return
	}
	label := string(record.FragilityLabel)
	if cl.colorOutput {
		label = labelColor(record.FragilityLabel).Sprint(label)
	}
	cl.logWithLevel("INFO", formatReportPersisted(record, label))
}

// LogPersistFailure reports a report that was computed but not stored.
func (cl *ConsoleLogger) LogPersistFailure(runID string, err error) {
	cl.logWithLevel("ERROR", formatPersistFailure(runID, err))
}

// LogIngest reports an appended batch.
func (cl *ConsoleLogger) LogIngest(events, users int) {
	cl.logWithLevel("INFO", formatIngest(events, users))
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !shouldLog(cl.logLevel, level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, levelColor(level).Sprint(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

func labelColor(label models.Label) *color.Color {
	switch label {
	case models.LabelHigh:
		return color.New(color.FgRed, color.Bold)
	case models.LabelMedium:
		return color.New(color.FgYellow)
	case models.LabelLow:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgHiBlack)
	}
}

// timestamp returns the current time formatted as HH:MM:SS.
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(string)                                    {}
func (n *NoOpLogger) LogDebug(string)                                    {}
func (n *NoOpLogger) LogInfo(string)                                     {}
func (n *NoOpLogger) LogWarn(string)                                     {}
func (n *NoOpLogger) LogError(string)                                    {}
func (n *NoOpLogger) LogRunStart(string)                                 {}
func (n *NoOpLogger) LogSkippedRows(string, string, []models.SkippedRow) {}
func (n *NoOpLogger) LogTallyMismatch(string, int64, int64)              {}
func (n *NoOpLogger) LogReportPersisted(*models.ReportRecord)            {}
func (n *NoOpLogger) LogPersistFailure(string, error)                    {}
func (n *NoOpLogger) LogIngest(int, int)                                 {}
