package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
)

const sessionColumns = "id, action_id, person_id, shot_id, sequence, path, failsafe, started_at, finished_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		session     Session
		failsafe    int
		startedRaw  string
		finishedRaw string
	)
	if err := scanner.Scan(
		&session.ID,
		&session.ActionID,
		&session.PersonID,
		&session.ShotID,
		&session.Sequence,
		&session.Path,
		&failsafe,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	session.Failsafe = failsafe != 0
	session.StartedAt = parseTime(startedRaw)
	session.FinishedAt = parseTime(finishedRaw)
	return &session, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
