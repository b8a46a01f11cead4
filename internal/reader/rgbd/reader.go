// Package rgbd reads an RGB-D camera, buffers color and depth frames while a
// session records, and hands completed sessions to the write coordinator.
package rgbd

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/logging"
	"dsrec/internal/preview"
	"dsrec/internal/runnable"
)

// DeviceName identifies this sensor in errors and logs.
const DeviceName = "rgbd"

// Notifier receives live color previews. Implementations must not block.
type Notifier interface {
	ColorFrame(image.Image)
}

// Options configures a Reader.
type Options struct {
	Device        Device
	Notifier      Notifier
	FrameTimeout  time.Duration
	PreviewWidth  int
	PreviewHeight int
	Portrait      bool
	Logger        *slog.Logger
}

type job struct {
	stamp capture.Stamp
	color []*image.RGBA
	depth []*image.Gray16
}

// Reader buffers RGB-D frames per session.
type Reader struct {
	device        Device
	notifier      Notifier
	frameTimeout  time.Duration
	previewWidth  int
	previewHeight int
	portrait      bool
	logger        *slog.Logger
	runner        *runnable.Runner

	mu        sync.Mutex
	recording bool
	current   *job

	ready    capture.Queue[*job]
	acquired   atomic.Uint64
	timeouts   atomic.Uint64
	incomplete atomic.Uint64
}

// New builds a Reader around an open device.
func New(opts Options) *Reader {
	timeout := opts.FrameTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &Reader{
		device:        opts.Device,
		notifier:      opts.Notifier,
		frameTimeout:  timeout,
		previewWidth:  opts.PreviewWidth,
		previewHeight: opts.PreviewHeight,
		portrait:      opts.Portrait,
		logger:        logging.NewComponentLogger(opts.Logger, "rgbd"),
	}
	r.runner = runnable.New(r.proc)
	return r
}

// Start launches the acquisition loop.
func (r *Reader) Start(ctx context.Context) { r.runner.Start(ctx) }

// Stop halts the acquisition loop. A session still recording is flushed with
// the failsafe identity.
func (r *Reader) Stop() { r.runner.Stop() }

// NotifyRecord starts buffering frames.
func (r *Reader) NotifyRecord() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.logger.Warn("record requested while already recording; ignoring",
			logging.String(logging.FieldEventType, "reader_double_record"))
		return
	}
	r.recording = true
	r.current = &job{}
	r.logger.Debug("buffering started")
}

// NotifySave stamps the buffered session and queues it for the writer.
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

// NotifyCancel discards the buffered session.
func (r *Reader) NotifyCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	discarded := len(r.current.color)
	r.recording = false
	r.current = nil
	r.logger.Info("session discarded", logging.Int("frames", discarded))
}

// Poll reports whether a completed session is ready.
func (r *Reader) Poll() bool { return !r.ready.Empty() }

// Read removes one completed session. It returns nil when none is ready.
func (r *Reader) Read() []capture.Payload {
	j, ok := r.ready.Pop()
	if !ok {
		r.logger.Warn("read called with no ready session",
			logging.String(logging.FieldEventType, "reader_read_empty"))
		return nil
	}
	return []capture.Payload{
		{Modality: capture.ModalityColor, Save: SaveColor, Data: j.color},
		{Modality: capture.ModalityDepth, Save: SaveDepth, Data: j.depth},
	}
}

// Pending returns the number of ready sessions.
func (r *Reader) Pending() int { return r.ready.Len() }

// Recording reports whether frames are being buffered.
func (r *Reader) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Acquired returns the number of usable frames read from the device.
func (r *Reader) Acquired() uint64 { return r.acquired.Load() }

// Incomplete returns how many frames lacked color or depth and were dropped.
func (r *Reader) Incomplete() uint64 { return r.incomplete.Load() }

func (r *Reader) enqueueLocked(stamp capture.Stamp) {
	j := r.current
	j.stamp = stamp
	r.recording = false
	r.current = nil
	r.ready.Push(j)
	r.logger.Info("session queued",
		logging.Int(logging.FieldActionID, stamp.ActionID),
		logging.Int(logging.FieldPersonID, stamp.PersonID),
		logging.Int("frames", len(j.color)),
	)
}

func (r *Reader) proc(ctx context.Context) {
	r.logger.Info("acquisition started", logging.Duration("frame_timeout", r.frameTimeout))
	defer r.flush()

	for ctx.Err() == nil {
		frame, err := r.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrDeviceTimeout) {
				r.timeouts.Add(1)
				logging.WarnWithContext(r.logger, "frame wait timed out; retrying", "device_timeout",
					logging.Duration("frame_timeout", r.frameTimeout),
					logging.String(logging.FieldErrorHint, "check the camera cable and USB bandwidth"),
					logging.String(logging.FieldImpact, "frames may be missing from the current session"),
				)
				continue
			}
			logging.ErrorWithContext(r.logger, "frame read failed", "device_read_failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if r.accept(frame) {
			r.acquired.Add(1)
		}
	}
}

func (r *Reader) next(ctx context.Context) (Frame, error) {
	frameCtx, cancel := context.WithTimeout(ctx, r.frameTimeout)
	defer cancel()
	frame, err := r.device.Frame(frameCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return Frame{}, capture.ErrDeviceTimeout
	}
	return frame, err
}

// accept buffers or previews frame and reports whether it was usable.
func (r *Reader) accept(frame Frame) bool {
	if frame.Color == nil || frame.Depth == nil {
		r.incomplete.Add(1)
		logging.WarnWithContext(r.logger, "incomplete frame skipped", "rgbd_frame_incomplete",
			logging.Uint64("seq", frame.Seq),
			logging.Bool("color", frame.Color != nil),
			logging.Bool("depth", frame.Depth != nil),
			logging.String(logging.FieldImpact, "frame missing from the session"),
		)
		return false
	}
	r.mu.Lock()
	if r.recording {
		r.current.color = append(r.current.color, frame.Color)
		r.current.depth = append(r.current.depth, frame.Depth)
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()
	r.publishPreview(frame)
	return true
}

func (r *Reader) publishPreview(frame Frame) {
	if r.notifier == nil || frame.Color == nil {
		return
	}
	var img image.Image = frame.Color
	if r.previewWidth > 0 && r.previewHeight > 0 {
		img = preview.Scale(img, r.previewWidth, r.previewHeight)
	}
	if r.portrait {
		img = preview.Rotate90CCW(img)
	}
	r.notifier.ColorFrame(img)
}

// flush keeps frames captured before shutdown instead of dropping them.
func (r *Reader) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		r.logger.Info("acquisition stopped", logging.Int64("frames", int64(r.acquired.Load())))
		return
	}
	logging.WarnWithContext(r.logger, "stopped while recording; flushing session", "reader_failsafe_flush",
		logging.Int("frames", len(r.current.color)),
		logging.String(logging.FieldImpact, "session saved under the failsafe identity A-001P-001"),
	)
	r.enqueueLocked(capture.FailsafeStamp())
}
