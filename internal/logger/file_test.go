package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison/fragility/internal/models"
)

func TestFileLogger_CreatesRunLogAndSymlink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	fl, err := NewFileLogger(dir)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	defer fl.Close()

	base := filepath.Base(fl.Path())
	if !strings.HasPrefix(base, "run-") || !strings.HasSuffix(base, ".log") {
		t.Errorf("run file = %q, want run-YYYYMMDD-HHMMSS.log", base)
	}

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log: %v", err)
	}
	if target != base {
		t.Errorf("latest.log -> %q, want %q", target, base)
	}
}

func TestFileLogger_WritesEvents(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLoggerWithLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithLevel() error = %v", err)
	}

	fl.LogDebug("hidden")
	fl.LogRunStart("run-9")
	fl.LogSkippedRows("run-9", "tally", []models.SkippedRow{{Index: 4, Reason: "missing count"}})
	fl.LogReportPersisted(&models.ReportRecord{ID: 1, RunID: "run-9", TotalEvents: 3, FragilityScore: 1, FragilityLabel: models.LabelHigh})
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(fl.Path())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	out := string(data)

	if !strings.HasPrefix(out, "=== Fragility Run Log ===\n") {
		t.Errorf("missing header:\n%s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level:\n%s", out)
	}
	for _, want := range []string{
		"[INFO] Run run-9: building fragility report",
		"[WARN]   tally row 4: missing count",
		"label=HIGH",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("run log missing %q\n%s", want, out)
		}
	}
}

func TestFileLogger_CloseTwice(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := fl.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	fl.LogInfo("after close is dropped")
}
