package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists session records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or connects to the catalog database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Writes come from one goroutine; a single connection keeps pragmas sticky.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts a session and its modalities. An empty ID is filled with a new
// UUID.
func (s *Store) Add(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	if strings.TrimSpace(session.Path) == "" {
		return errors.New("session path is required")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin insert tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, action_id, person_id, shot_id, sequence, path, failsafe, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.ActionID, session.PersonID, session.ShotID, session.Sequence, session.Path,
			boolToInt(session.Failsafe), formatTime(session.StartedAt), formatTime(session.FinishedAt),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		for _, m := range session.Modalities {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO session_modalities (session_id, name, items, error) VALUES (?, ?, ?, ?)",
				session.ID, m.Name, m.Items, m.Error,
			); err != nil {
				return fmt.Errorf("insert modality %s: %w", m.Name, err)
			}
		}
		return tx.Commit()
	})
}

// Get returns the session with id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := s.loadModalities(ctx, []*Session{session}); err != nil {
		return nil, err
	}
	return session, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ActionID *int
	PersonID *int
	Limit    int
}

// List returns sessions newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Session, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + sessionColumns + " FROM sessions"
	var (
		clauses []string
		args    []any
	)
	if filter.ActionID != nil {
		clauses = append(clauses, "action_id = ?")
		args = append(args, *filter.ActionID)
	}
	if filter.PersonID != nil {
		clauses = append(clauses, "person_id = ?")
		args = append(args, *filter.PersonID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY finished_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	if err := s.loadModalities(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Summary counts all sessions, those with failed modalities and failsafe
// flushes.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	ctx = ensureContext(ctx)
	var summary Summary
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(1),
		COALESCE(SUM(failsafe), 0),
		(SELECT COUNT(DISTINCT session_id) FROM session_modalities WHERE error <> '')
		FROM sessions`).Scan(&summary.Sessions, &summary.Failsafe, &summary.Failed)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize sessions: %w", err)
	}
	return summary, nil
}

func (s *Store) loadModalities(ctx context.Context, sessions []*Session) error {
	for _, session := range sessions {
		rows, err := s.db.QueryContext(ctx,
			"SELECT name, items, error FROM session_modalities WHERE session_id = ? ORDER BY name", session.ID)
		if err != nil {
			return fmt.Errorf("load modalities: %w", err)
		}
		for rows.Next() {
			var m Modality
			if err := rows.Scan(&m.Name, &m.Items, &m.Error); err != nil {
				rows.Close()
				return fmt.Errorf("scan modality: %w", err)
			}
			session.Modalities = append(session.Modalities, m)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate modalities: %w", err)
		}
	}
	return nil
}
