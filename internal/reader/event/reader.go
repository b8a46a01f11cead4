// Package event records an event camera's stream to a scratch file per
// session and moves it into the session folder when the writer saves it.
package event

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dsrec/internal/capture"
	"dsrec/internal/fileutil"
	"dsrec/internal/logging"
	"dsrec/internal/preview"
	"dsrec/internal/runnable"
)

// DeviceName identifies this sensor in errors and logs.
const DeviceName = "event"

// StreamFileName is the name of the saved stream inside the modality folder.
const StreamFileName = "EventStream.bin"

const scratchPrefix = ".event_stream."

// ScratchPattern matches scratch streams left in scratch_dir.
const ScratchPattern = scratchPrefix + "*"

// Notifier receives live event previews. Implementations must not block.
type Notifier interface {
	EventFrame(image.Image)
}

// Options configures a Reader.
type Options struct {
	Device          Device
	Notifier        Notifier
	ScratchDir      string
	PreviewInterval time.Duration
	PreviewWidth    int
	PreviewHeight   int
	Portrait        bool
	Logger          *slog.Logger
}

type job struct {
	stamp capture.Stamp
	path  string
}

// Reader records event streams per session.
type Reader struct {
	device          Device
	notifier        Notifier
	scratchDir      string
	previewInterval time.Duration
	previewWidth    int
	previewHeight   int
	portrait        bool
	logger          *slog.Logger
	runner          *runnable.Runner

	mu        sync.Mutex
	recording bool
	current   string

	ready capture.Queue[job]
}

// New builds a Reader around an open device.
func New(opts Options) *Reader {
	interval := opts.PreviewInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	r := &Reader{
		device:          opts.Device,
		notifier:        opts.Notifier,
		scratchDir:      opts.ScratchDir,
		previewInterval: interval,
		previewWidth:    opts.PreviewWidth,
		previewHeight:   opts.PreviewHeight,
		portrait:        opts.Portrait,
		logger:          logging.NewComponentLogger(opts.Logger, "event"),
	}
	r.runner = runnable.New(r.proc)
	return r
}

// Start launches the preview loop.
func (r *Reader) Start(ctx context.Context) { r.runner.Start(ctx) }

// Stop halts the preview loop, flushing an in-progress session with the
// failsafe identity.
func (r *Reader) Stop() { r.runner.Stop() }

// NotifyRecord opens a new scratch stream.
func (r *Reader) NotifyRecord() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.logger.Warn("record requested while already recording; ignoring",
			logging.String(logging.FieldEventType, "reader_double_record"))
		return
	}
	path := filepath.Join(r.scratchDir, scratchName())
	r.recording = true
	r.current = path
	if err := r.device.StartRecording(path); err != nil {
		// The session stays open so the writer still sees one job per save.
		logging.ErrorWithContext(r.logger, "event recording failed to start", "event_record_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the event camera connection and scratch_dir permissions"),
		)
		return
	}
	r.logger.Debug("event recording started", logging.String("path", path))
}

// NotifySave closes the stream and queues it for the writer.
func (r *Reader) NotifySave(actionID, personID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		r.logger.Warn("save requested while idle; ignoring",
			logging.String(logging.FieldEventType, "reader_save_idle"))
		return
	}
	r.enqueueLocked(capture.Stamp{ActionID: actionID, PersonID: personID})
}

// NotifyCancel closes the stream and deletes the scratch file.
func (r *Reader) NotifyCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.stopDeviceLocked()
	if err := fileutil.RemoveIfExists(r.current); err != nil {
		logging.WarnWithContext(r.logger, "scratch stream not removed", "event_scratch_remove_failed",
			logging.String("path", r.current),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale scratch file left in scratch_dir"),
		)
	}
	r.logger.Info("session discarded", logging.String("path", r.current))
	r.recording = false
	r.current = ""
}

// Poll reports whether a completed stream is ready.
func (r *Reader) Poll() bool { return !r.ready.Empty() }

// Read removes one completed stream. It returns nil when none is ready.
func (r *Reader) Read() []capture.Payload {
	j, ok := r.ready.Pop()
	if !ok {
		r.logger.Warn("read called with no ready session",
			logging.String(logging.FieldEventType, "reader_read_empty"))
		return nil
	}
	return []capture.Payload{
		{Modality: capture.ModalityEventStream, Save: SaveStream, Data: j.path},
	}
}

// Pending returns the number of ready streams.
func (r *Reader) Pending() int { return r.ready.Len() }

// Recording reports whether a stream is open.
func (r *Reader) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Reader) enqueueLocked(stamp capture.Stamp) {
	r.stopDeviceLocked()
	path := r.current
	r.recording = false
	r.current = ""
	r.ready.Push(job{stamp: stamp, path: path})
	r.logger.Info("session queued",
		logging.Int(logging.FieldActionID, stamp.ActionID),
		logging.Int(logging.FieldPersonID, stamp.PersonID),
		logging.String("path", path),
	)
}

func (r *Reader) stopDeviceLocked() {
	if err := r.device.StopRecording(); err != nil {
		logging.WarnWithContext(r.logger, "event recording did not stop cleanly", "event_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stream file may be truncated"),
		)
	}
}

func (r *Reader) proc(ctx context.Context) {
	r.logger.Info("preview loop started", logging.Duration("interval", r.previewInterval))
	defer r.flush()

	ticker := time.NewTicker(r.previewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if r.notifier == nil || r.Recording() {
			continue
		}
		img, err := r.device.Preview()
		if err != nil {
			r.logger.Debug("event preview unavailable", logging.Error(err))
			continue
		}
		r.notifier.EventFrame(r.orient(img))
	}
}

func (r *Reader) orient(img *image.Gray) image.Image {
	var out image.Image = img
	if r.previewWidth > 0 && r.previewHeight > 0 {
		out = preview.ScaleGray(out, r.previewWidth, r.previewHeight)
	}
	if r.portrait {
		out = preview.Rotate90CW(out)
	}
	return preview.FlipHorizontal(out)
}

func (r *Reader) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		r.logger.Info("preview loop stopped")
		return
	}
	logging.WarnWithContext(r.logger, "stopped while recording; flushing session", "reader_failsafe_flush",
		logging.String("path", r.current),
		logging.String(logging.FieldImpact, "session saved under the failsafe identity A-001P-001"),
	)
	r.enqueueLocked(capture.FailsafeStamp())
}

func scratchName() string {
	return scratchPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
