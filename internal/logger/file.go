package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/fragility/internal/models"
)

// FileLogger logs runs to files in the configured log directory.
// Each process gets a timestamped run-YYYYMMDD-HHMMSS.log and a latest.log
// symlink pointing at it. It is thread-safe and supports level filtering.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing under logDir at info level.
func NewFileLogger(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithLevel(logDir, "info")
}

// NewFileLoggerWithLevel creates a FileLogger with a custom log level.
func NewFileLoggerWithLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	now := time.Now()
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", now.Format("20060102-150405")))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== Fragility Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", now.Format(time.RFC3339)))

	return fl, nil
}

// Path returns the run log file path.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) LogRunStart(runID string) {
	fl.logWithLevel("INFO", formatRunStart(runID))
}

// LogSkippedRows writes every skipped row; the file is the audit trail.
func (fl *FileLogger) LogSkippedRows(runID, source string, rows []models.SkippedRow) {
	if len(rows) == 0 {
		return
	}
	fl.logWithLevel("WARN", formatSkippedSummary(runID, source, len(rows)))
	for _, row := range rows {
		fl.logWithLevel("WARN", formatSkippedRow(source, row))
	}
}

func (fl *FileLogger) LogTallyMismatch(runID string, direct, tally int64) {
	fl.logWithLevel("WARN", formatTallyMismatch(runID, direct, tally))
}

func (fl *FileLogger) LogReportPersisted(record *models.ReportRecord) {
	if record == nil {
		return
	}
	fl.logWithLevel("INFO", formatReportPersisted(record, string(record.FragilityLabel)))
}

func (fl *FileLogger) LogPersistFailure(runID string, err error) {
	fl.logWithLevel("ERROR", formatPersistFailure(runID, err))
}

func (fl *FileLogger) LogIngest(events, users int) {
	fl.logWithLevel("INFO", formatIngest(events, users))
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !shouldLog(fl.logLevel, level) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// Close flushes and closes the run log.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
