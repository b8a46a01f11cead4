package event_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/reader/event"
)

// fileDevice writes a fixed body when recording stops.
type fileDevice struct {
	mu       sync.Mutex
	path     string
	starts   int
	stops    int
	startErr error
	preview  *image.Gray
}

func (d *fileDevice) StartRecording(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.startErr != nil {
		return d.startErr
	}
	d.path = path
	return os.WriteFile(path, []byte("events"), 0o644)
}

func (d *fileDevice) StopRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fileDevice) Preview() (*image.Gray, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.preview == nil {
		return nil, errors.New("no preview")
	}
	return d.preview, nil
}

func (d *fileDevice) Close() error { return nil }

func (d *fileDevice) scratch() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

type previewSink struct {
	mu     sync.Mutex
	frames []image.Image
}

func (p *previewSink) EventFrame(img image.Image) {
	p.mu.Lock()
	p.frames = append(p.frames, img)
	p.mu.Unlock()
}

func (p *previewSink) first() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return nil
	}
	return p.frames[0]
}

func newReader(t *testing.T, dev event.Device, sink event.Notifier, portrait bool) *event.Reader {
	t.Helper()
	return event.New(event.Options{
		Device:          dev,
		Notifier:        sink,
		ScratchDir:      t.TempDir(),
		PreviewInterval: time.Millisecond,
		PreviewWidth:    6,
		PreviewHeight:   4,
		Portrait:        portrait,
	})
}

func TestRecordSaveQueuesScratchStream(t *testing.T) {
	dev := &fileDevice{}
	r := newReader(t, dev, nil, false)

	r.NotifyRecord()
	scratch := dev.scratch()
	if !strings.HasPrefix(filepath.Base(scratch), ".event_stream.") {
		t.Fatalf("unexpected scratch name %q", scratch)
	}
	r.NotifySave(2, 5)
	if dev.stops != 1 {
		t.Fatalf("expected device recording to stop once, got %d", dev.stops)
	}
	if !r.Poll() {
		t.Fatal("expected ready stream after save")
	}
	payloads := r.Read()
	if len(payloads) != 1 || payloads[0].Modality != capture.ModalityEventStream {
		t.Fatalf("unexpected payloads: %+v", payloads)
	}
	if payloads[0].Data.(string) != scratch {
		t.Fatalf("payload path %q does not match scratch %q", payloads[0].Data, scratch)
	}

	dir := t.TempDir()
	if err := payloads[0].Save(dir, payloads[0].Data); err != nil {
		t.Fatalf("save stream: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, event.StreamFileName)); err != nil {
		t.Fatalf("expected saved stream: %v", err)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("expected scratch file to be moved, stat err = %v", err)
	}
}

func TestRecordCancelRemovesScratch(t *testing.T) {
	dev := &fileDevice{}
	r := newReader(t, dev, nil, false)

	r.NotifyRecord()
	scratch := dev.scratch()
	r.NotifyCancel()
	if r.Poll() {
		t.Fatal("cancel must not produce a job")
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("expected scratch file removed, stat err = %v", err)
	}
	r.NotifySave(1, 1)
	if r.Poll() {
		t.Fatal("save while idle must not produce a job")
	}
}

func TestDoubleRecordStartsDeviceOnce(t *testing.T) {
	dev := &fileDevice{}
	r := newReader(t, dev, nil, false)
	r.NotifyRecord()
	r.NotifyRecord()
	if dev.starts != 1 {
		t.Fatalf("expected one device start, got %d", dev.starts)
	}
}

func TestStartFailureStillYieldsJob(t *testing.T) {
	dev := &fileDevice{startErr: errors.New("sensor busy")}
	r := newReader(t, dev, nil, false)

	r.NotifyRecord()
	r.NotifySave(3, 3)
	payloads := r.Read()
	if len(payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(payloads))
	}
	if err := payloads[0].Save(t.TempDir(), payloads[0].Data); err == nil {
		t.Fatal("expected save to fail for a stream that never started")
	}
}

func TestStopWhileRecordingFlushesFailsafe(t *testing.T) {
	dev := &fileDevice{}
	r := newReader(t, dev, nil, false)
	r.Start(context.Background())
	r.NotifyRecord()
	r.Stop()

	if r.Pending() != 1 {
		t.Fatalf("expected failsafe job, got %d pending", r.Pending())
	}
	if r.Recording() {
		t.Fatal("expected reader idle after flush")
	}
}

func TestPreviewIsRotatedAndMirrored(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 6, 4))
	for _, pt := range []image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		src.SetGray(pt.X, pt.Y, color.Gray{Y: 255})
	}
	dev := &fileDevice{preview: src}
	sink := &previewSink{}
	r := newReader(t, dev, sink, true)
	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sink.first() == nil && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	img := sink.first()
	if img == nil {
		t.Fatal("expected a preview frame")
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 6 {
		t.Fatalf("expected 4x6 portrait preview, got %dx%d", b.Dx(), b.Dy())
	}
	// Rotating clockwise moves the top-left pixel to the top-right; the
	// mirror brings it back to the top-left.
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected grayscale preview, got %T", img)
	}
	if gray.GrayAt(0, 0).Y == 0 {
		t.Fatal("expected lit pixel at top-left after rotate and mirror")
	}
}

func TestPreviewPausedWhileRecording(t *testing.T) {
	dev := &fileDevice{preview: image.NewGray(image.Rect(0, 0, 6, 4))}
	sink := &previewSink{}
	r := newReader(t, dev, sink, false)
	r.NotifyRecord()
	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	if sink.first() != nil {
		t.Fatal("expected no preview while recording")
	}
	r.NotifyCancel()
	r.Stop()
}

func TestSaveStreamRejectsWrongPayload(t *testing.T) {
	if err := event.SaveStream(t.TempDir(), 42); err == nil {
		t.Fatal("expected error for wrong payload type")
	}
}

func TestSimDriverRecordsEvents(t *testing.T) {
	dev, err := event.Open("sim", event.DeviceConfig{Width: 32, Height: 16, Threshold: 70})
	if err != nil {
		t.Fatalf("open sim: %v", err)
	}
	defer dev.Close()

	path := filepath.Join(t.TempDir(), "stream.bin")
	if err := dev.StartRecording(path); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := dev.StopRecording(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat stream: %v", err)
	}
	if info.Size() == 0 || info.Size()%8 != 0 {
		t.Fatalf("unexpected stream size %d", info.Size())
	}
	pic, err := dev.Preview()
	if err != nil || pic.Bounds().Dx() != 32 {
		t.Fatalf("unexpected preview: %v, %v", pic, err)
	}
}

func TestOpenMissingFPNFile(t *testing.T) {
	_, err := event.Open("sim", event.DeviceConfig{Width: 8, Height: 8, FPNFile: filepath.Join(t.TempDir(), "missing.txt")})
	var openErr *capture.DeviceOpenError
	if !errors.As(err, &openErr) || openErr.Device != event.DeviceName {
		t.Fatalf("expected event DeviceOpenError, got %v", err)
	}
}
