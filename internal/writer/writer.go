// Package writer drains completed sessions from every sensor reader in lock
// step and persists them under <root>/A####P####/S##/<modality>.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dsrec/internal/capture"
	"dsrec/internal/catalog"
	"dsrec/internal/logging"
	"dsrec/internal/notifications"
	"dsrec/internal/runnable"
)

const defaultPollInterval = 100 * time.Millisecond

// reportTimeout bounds catalog and notification calls made after a cycle.
const reportTimeout = 5 * time.Second

// QueueNotifier receives the pending-save queue depth after each cycle.
type QueueNotifier interface {
	QueueSize(int)
}

// Catalog records written sessions.
type Catalog interface {
	Add(ctx context.Context, session *catalog.Session) error
}

// Options configures a Writer. Shot, when set, reports the shot id recorded
// with each save.
type Options struct {
	Root          string
	PollInterval  time.Duration
	Shot          func() int
	Catalog       Catalog
	Notifications notifications.Service
	Notifier      QueueNotifier
	Logger        *slog.Logger
}

type pendingSave struct {
	stamp  capture.Stamp
	shot   int
	queued time.Time
}

// Writer is the write coordinator. It is a capture.Callback that only reacts
// to NotifySave.
type Writer struct {
	root          string
	pollInterval  time.Duration
	shot          func() int
	catalog       Catalog
	notifications notifications.Service
	notifier      QueueNotifier
	logger        *slog.Logger
	runner        *runnable.Runner

	mu      sync.Mutex
	readers []capture.Readable

	pending capture.Queue[pendingSave]
}

// New builds a Writer.
func New(opts Options) *Writer {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	w := &Writer{
		root:          opts.Root,
		pollInterval:  interval,
		shot:          opts.Shot,
		catalog:       opts.Catalog,
		notifications: opts.Notifications,
		notifier:      opts.Notifier,
		logger:        logging.NewComponentLogger(opts.Logger, "writer"),
	}
	w.runner = runnable.New(w.proc)
	return w
}

// Register adds a reader to drain.
func (w *Writer) Register(r capture.Readable) {
	if r == nil {
		return
	}
	w.mu.Lock()
	w.readers = append(w.readers, r)
	w.mu.Unlock()
}

// Start launches the write loop.
func (w *Writer) Start(ctx context.Context) { w.runner.Start(ctx) }

// Stop halts the write loop after draining every cycle that is already ready.
func (w *Writer) Stop() { w.runner.Stop() }

// Running reports whether the write loop is active.
func (w *Writer) Running() bool { return w.runner.Running() }

func (w *Writer) NotifyRecord() {}

func (w *Writer) NotifyCancel() {}

// NotifySave queues the identity the next write cycle is stamped with.
func (w *Writer) NotifySave(actionID, personID int) {
	entry := pendingSave{
		stamp:  capture.Stamp{ActionID: actionID, PersonID: personID},
		queued: time.Now(),
	}
	if w.shot != nil {
		entry.shot = w.shot()
	}
	w.pending.Push(entry)
	w.logger.Debug("save queued",
		logging.Int(logging.FieldActionID, actionID),
		logging.Int(logging.FieldPersonID, personID),
		logging.Int("pending", w.pending.Len()),
	)
}

// Pending returns the number of saves waiting for a write cycle.
func (w *Writer) Pending() int { return w.pending.Len() }

func (w *Writer) proc(ctx context.Context) {
	w.logger.Info("write loop started",
		logging.String("root", w.root),
		logging.Duration("poll_interval", w.pollInterval),
	)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			if !w.cycle() {
				break
			}
		}
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-ticker.C:
		}
	}
}

func (w *Writer) drain() {
	drained := 0
	for w.cycle() {
		drained++
	}
	w.logger.Info("write loop stopped",
		logging.Int("drained", drained),
		logging.Int("pending", w.pending.Len()),
	)
}

func (w *Writer) snapshotReaders() []capture.Readable {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]capture.Readable(nil), w.readers...)
}

// cycle writes one session when every reader has one ready. It reports
// whether a session was consumed.
func (w *Writer) cycle() bool {
	readers := w.snapshotReaders()
	if len(readers) == 0 {
		return false
	}
	for _, r := range readers {
		if !r.Poll() {
			return false
		}
	}

	entry, ok := w.pending.Pop()
	if !ok {
		logging.WarnWithContext(w.logger, "readers ready without a queued save", "writer_pending_empty",
			logging.String(logging.FieldErrorHint, "a reader was stopped mid-session"),
			logging.String(logging.FieldImpact, "session written under the failsafe identity"),
		)
		entry = pendingSave{stamp: capture.FailsafeStamp(), queued: time.Now()}
	}

	var payloads []capture.Payload
	for _, r := range readers {
		payloads = append(payloads, r.Read()...)
	}

	w.write(entry, payloads)
	if w.notifier != nil {
		w.notifier.QueueSize(w.pending.Len())
	}
	return true
}

func (w *Writer) write(entry pendingSave, payloads []capture.Payload) {
	started := time.Now()
	stamp := entry.stamp
	logger := w.logger.With(
		logging.Int(logging.FieldActionID, stamp.ActionID),
		logging.Int(logging.FieldPersonID, stamp.PersonID),
		logging.Int(logging.FieldShotID, entry.shot),
	)

	dir, seq, err := AllocateSession(w.root, stamp)
	if err != nil {
		logging.ErrorWithContext(logger, "session folder allocation failed", "writer_allocate_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.data_dir exists and is writable"),
		)
		w.publish(notifications.EventSessionFailed, notifications.Payload{
			"session":    filepath.Base(PersonDir(w.root, stamp)),
			"modalities": modalityNames(payloads),
			"error":      err.Error(),
		})
		return
	}

	record := &catalog.Session{
		ID:        uuid.NewString(),
		ActionID:  stamp.ActionID,
		PersonID:  stamp.PersonID,
		ShotID:    entry.shot,
		Sequence:  seq,
		Path:      dir,
		Failsafe:  stamp.IsFailsafe(),
		StartedAt: started,
	}
	var failures []error
	for _, p := range payloads {
		result := catalog.Modality{Name: p.Modality}
		if err := w.save(dir, p); err != nil {
			failures = append(failures, err)
			result.Error = err.Error()
			logging.ErrorWithContext(logger, "modality save failed", "writer_save_failed",
				logging.String(logging.FieldModality, p.Modality),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remaining modalities are still written"),
			)
		} else {
			result.Items = countItems(filepath.Join(dir, p.Modality))
		}
		record.Modalities = append(record.Modalities, result)
	}
	record.FinishedAt = time.Now()

	logger.Info("session written",
		logging.String("path", dir),
		logging.Int("sequence", seq),
		logging.String("items", itemSummary(record.Modalities)),
		logging.Int("failed", len(failures)),
		logging.Duration("elapsed", record.Duration()),
		logging.Duration("queued_for", started.Sub(entry.queued)),
	)
	w.report(logger, record, failures)
}

func (w *Writer) save(dir string, p capture.Payload) (err error) {
	modalityDir := filepath.Join(dir, p.Modality)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("save panicked: %v", r)
		}
		if err != nil {
			err = &capture.SaveError{Modality: p.Modality, Dir: modalityDir, Err: err}
		}
	}()
	if p.Save == nil {
		return errors.New("payload has no save function")
	}
	if err := os.MkdirAll(modalityDir, 0o755); err != nil {
		return err
	}
	return p.Save(modalityDir, p.Data)
}

func (w *Writer) report(logger *slog.Logger, record *catalog.Session, failures []error) {
	if w.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		err := w.catalog.Add(ctx, record)
		cancel()
		if err != nil {
			logging.WarnWithContext(logger, "catalog update failed", "catalog_add_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "session is on disk but missing from the catalog"),
			)
		}
	}

	name := filepath.Join(filepath.Base(filepath.Dir(record.Path)), filepath.Base(record.Path))
	if len(failures) > 0 {
		w.publish(notifications.EventSessionFailed, notifications.Payload{
			"session":    name,
			"modalities": strings.Join(record.FailedModalities(), ","),
			"error":      errors.Join(failures...).Error(),
		})
		return
	}
	w.publish(notifications.EventSessionSaved, notifications.Payload{
		"session": name,
		"path":    record.Path,
		"items":   itemSummary(record.Modalities),
	})
}

func (w *Writer) publish(event notifications.Event, payload notifications.Payload) {
	if w.notifications == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if err := w.notifications.Publish(ctx, event, payload); err != nil {
		w.logger.Debug("notification failed", logging.String(logging.FieldEventType, string(event)), logging.Error(err))
	}
}

func countItems(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	return len(entries)
}

func itemSummary(mods []catalog.Modality) string {
	parts := make([]string, 0, len(mods))
	for _, m := range mods {
		if m.Failed() {
			parts = append(parts, m.Name+"=failed")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", m.Name, m.Items))
	}
	return strings.Join(parts, " ")
}

func modalityNames(payloads []capture.Payload) string {
	names := make([]string, 0, len(payloads))
	for _, p := range payloads {
		names = append(names, p.Modality)
	}
	return strings.Join(names, ",")
}
