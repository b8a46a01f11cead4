package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory whose files matching Pattern are pruned
// once they age past the retention window. Label appears in log output
// ("run log", "event scratch").
type RetentionTarget struct {
	Label   string
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes files under targets whose modification time is older
// than retentionDays and returns how many were removed. Zero or negative
// retentionDays disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if pruneFile(logger, target.label(), path) {
				removed++
			}
		}
	}
	return removed
}

func (t RetentionTarget) label() string {
	if label := strings.TrimSpace(t.Label); label != "" {
		return label
	}
	return "log"
}

// expired lists absolute paths in t.Dir that match t.Pattern, are not
// excluded, and were last modified before cutoff.
func (t RetentionTarget) expired(cutoff time.Time) []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	skip := make(map[string]bool, len(t.Exclude))
	for _, path := range t.Exclude {
		if path = strings.TrimSpace(path); path != "" {
			skip[absPath(path)] = true
		}
	}
	pattern := strings.TrimSpace(t.Pattern)

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if skip[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func pruneFile(logger *slog.Logger, label, path string) bool {
	if err := os.Remove(path); err != nil {
		WarnWithContext(logger, label+" retention remove failed; file remains", "retention_remove_failed",
			String("path", path),
			Error(err),
			String(FieldErrorHint, "check file permissions on paths.log_dir and paths.scratch_dir"),
			String(FieldImpact, "expired file stays on disk"),
		)
		return false
	}
	if logger != nil {
		logger.Debug(label+" pruned",
			String("path", path),
			String(FieldEventType, "retention_pruned"),
		)
	}
	return true
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
