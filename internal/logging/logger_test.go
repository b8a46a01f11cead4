package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dsrec/internal/config"
	"dsrec/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("recorder ready")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "recorder ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content := readFile(t, logPath)
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	content := readFile(t, logPath)
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndSession(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-session.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithSession(context.Background(), 3, 7, 2)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "writer"))
	logger.Info("session saved", logging.String(logging.FieldModality, "rgbd"))

	content := readFile(t, logPath)
	if !strings.Contains(content, "[writer]") {
		t.Fatalf("expected component in header, got %q", content)
	}
	if !strings.Contains(content, "A3_P7 #2") {
		t.Fatalf("expected session subject in header, got %q", content)
	}
	if !strings.Contains(content, "- modality: rgbd") {
		t.Fatalf("expected modality field, got %q", content)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithRequestID(logging.WithSession(context.Background(), 1, 2, 3), "req-9")
	logging.WithContext(ctx, base).Info("hello")

	content := readFile(t, logPath)
	for _, want := range []string{`"action_id":1`, `"person_id":2`, `"shot_id":3`, `"correlation_id":"req-9"`, `"level":"info"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(base, "queue empty", "writer_queue_empty")

	content := readFile(t, logPath)
	for _, want := range []string{`"event_type":"writer_queue_empty"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
}

func TestWithRunIDStampsRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WithRunID(base, "run-42").With(logging.String("k", "v")).Info("stamped")

	content := readFile(t, logPath)
	if !strings.Contains(content, `"run_id":"run-42"`) {
		t.Fatalf("expected run id in %q", content)
	}
}

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "dsrec-old.log")
	newPath := filepath.Join(dir, "dsrec-new.log")
	keepPath := filepath.Join(dir, "dsrec.log")
	for _, path := range []string{oldPath, newPath, keepPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{oldPath, keepPath} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "dsrec*.log",
		Exclude: []string{keepPath},
	})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected recent log kept: %v", err)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("expected excluded log kept: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func TestCleanupOldLogsPrunesScratchTargets(t *testing.T) {
	logDir := t.TempDir()
	scratchDir := t.TempDir()
	staleScratch := filepath.Join(scratchDir, ".event_stream.abc")
	unrelated := filepath.Join(scratchDir, "notes.txt")
	for _, path := range []string{staleScratch, unrelated} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -30)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7,
		logging.RetentionTarget{Label: "run log", Dir: logDir, Pattern: "dsrec-*.log"},
		logging.RetentionTarget{Label: "event scratch", Dir: scratchDir, Pattern: ".event_stream.*"},
	)
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(staleScratch); !os.IsNotExist(err) {
		t.Fatalf("expected stale scratch removed, stat err=%v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("expected unrelated file kept: %v", err)
	}
	if n := logging.CleanupOldLogs(logging.NewNop(), 0, logging.RetentionTarget{Dir: scratchDir}); n != 0 {
		t.Fatalf("retention 0 removed %d files", n)
	}
}
