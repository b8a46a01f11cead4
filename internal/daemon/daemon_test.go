package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/catalog"
	"dsrec/internal/config"
	"dsrec/internal/daemon"
	"dsrec/internal/logging"
	"dsrec/internal/reader/event"
	"dsrec/internal/reader/rgbd"
	"dsrec/internal/testsupport"
	"dsrec/internal/ui"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *catalog.Store) {
	t.Helper()
	store := testsupport.MustOpenCatalog(t, cfg)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Options{Catalog: store})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Master || status.State != "idle" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LockFilePath != filepath.Join(cfg.Paths.LogDir, daemon.LockFileName) {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRecordsSessionEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true), testsupport.WithIdentity(2, 5, 1))
	d, store := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	base := d.Status(ctx).FramesAcquired
	started, err := d.Record()
	if err != nil || !started {
		t.Fatalf("Record = %v, %v", started, err)
	}
	if again, err := d.Record(); err != nil || again {
		t.Fatalf("second Record = %v, %v; want false, nil", again, err)
	}
	if moved, _ := d.StepAction(1); moved {
		t.Fatal("expected action step to be ignored while recording")
	}
	waitFor(t, 2*time.Second, "frames", func() bool {
		return d.Status(ctx).FramesAcquired >= base+3
	})
	stopped, err := d.StopSession()
	if err != nil || !stopped {
		t.Fatalf("StopSession = %v, %v", stopped, err)
	}

	var sessions []*catalog.Session
	waitFor(t, 2*time.Second, "catalog entry", func() bool {
		sessions, err = d.Sessions(ctx, catalog.Filter{})
		return err == nil && len(sessions) == 1
	})
	session := sessions[0]
	want := filepath.Join(cfg.Paths.DataDir, "A0002P0005", "S00")
	if session.Path != want {
		t.Fatalf("session path = %q, want %q", session.Path, want)
	}
	if session.ShotID != 1 || session.Failsafe {
		t.Fatalf("unexpected session record: %+v", session)
	}
	for _, modality := range []string{capture.ModalityColor, capture.ModalityDepth} {
		if _, err := os.Stat(filepath.Join(want, modality, rgbd.FrameFileName(0))); err != nil {
			t.Fatalf("expected first %s frame: %v", modality, err)
		}
	}
	if _, err := os.Stat(filepath.Join(want, capture.ModalityEventStream, event.StreamFileName)); err != nil {
		t.Fatalf("expected event stream: %v", err)
	}
	if len(session.FailedModalities()) != 0 {
		t.Fatalf("unexpected failed modalities: %v", session.FailedModalities())
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Sessions != 1 {
		t.Fatalf("expected one catalogued session, got %+v", summary)
	}
}

func TestDaemonStopFlushesOpenSessionAsFailsafe(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := d.Record(); err != nil {
		t.Fatalf("Record: %v", err)
	}
	waitFor(t, 2*time.Second, "frames", func() bool {
		return d.Status(ctx).FramesAcquired >= 2
	})
	d.Stop()

	dir := filepath.Join(cfg.Paths.DataDir, "A-001P-001", "S00")
	for _, modality := range []string{capture.ModalityColor, capture.ModalityDepth, capture.ModalityEventStream} {
		if info, err := os.Stat(filepath.Join(dir, modality)); err != nil || !info.IsDir() {
			t.Fatalf("expected failsafe %s folder: %v", modality, err)
		}
	}
}

func TestDaemonDeviceOpenFailures(t *testing.T) {
	tests := []struct {
		name       string
		rgbd       string
		event      string
		wantDevice string
	}{
		{name: "rgbd", rgbd: "missing", event: "sim", wantDevice: rgbd.DeviceName},
		{name: "event", rgbd: "sim", event: "missing", wantDevice: event.DeviceName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithMaster(true), testsupport.WithDrivers(tc.rgbd, tc.event))
			d, _ := newDaemon(t, cfg)

			err := d.Start(context.Background())
			var openErr *capture.DeviceOpenError
			if !errors.As(err, &openErr) {
				t.Fatalf("expected DeviceOpenError, got %v", err)
			}
			if openErr.Device != tc.wantDevice {
				t.Fatalf("device = %q, want %q", openErr.Device, tc.wantDevice)
			}
			if d.Running() {
				t.Fatal("daemon must not run after a device failure")
			}

			// The lock must be released so a fixed config can start.
			cfg.RGBD.Driver, cfg.Event.Driver = "sim", "sim"
			if err := d.Start(context.Background()); err != nil {
				t.Fatalf("restart after fixing drivers: %v", err)
			}
			d.Stop()
		})
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	first, _ := newDaemon(t, cfg)
	second, err := daemon.New(cfg, logging.NewNop(), daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonCommandsRequireRunningMaster(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	d, _ := newDaemon(t, cfg)
	if _, err := d.Record(); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("Record on stopped daemon: %v", err)
	}

	sub := testsupport.NewConfig(t, testsupport.WithSyncPort(0))
	ds, _ := newDaemon(t, sub)
	if err := ds.Start(context.Background()); err != nil {
		t.Fatalf("subordinate Start: %v", err)
	}
	if _, err := ds.Record(); !errors.Is(err, daemon.ErrNotMaster) {
		t.Fatalf("Record on subordinate: %v", err)
	}
	if err := ds.SetShot(3); !errors.Is(err, daemon.ErrNotMaster) {
		t.Fatalf("SetShot on subordinate: %v", err)
	}
	if ds.Status(context.Background()).Master {
		t.Fatal("expected subordinate status")
	}
}

func TestDaemonIdentityCommands(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	d, _ := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if moved, err := d.StepPerson(-1); err != nil || moved {
		t.Fatalf("decrement at zero = %v, %v", moved, err)
	}
	if moved, err := d.StepAction(1); err != nil || !moved {
		t.Fatalf("StepAction = %v, %v", moved, err)
	}
	if err := d.SetShot(4); err != nil {
		t.Fatalf("SetShot: %v", err)
	}
	if err := d.SetShot(-1); err == nil {
		t.Fatal("expected negative shot to be rejected")
	}
	id := d.Status(context.Background()).Identity
	if id.ActionID != 1 || id.PersonID != 0 || id.ShotID != 4 {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestDaemonSnapshotServesLatestPreview(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	d, _ := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, "color preview", func() bool {
		_, err := d.Snapshot(ui.KindColorFrame)
		return err == nil
	})
	data, err := d.Snapshot(ui.KindColorFrame)
	if err != nil || len(data) == 0 {
		t.Fatalf("Snapshot = %d bytes, %v", len(data), err)
	}
	if _, err := d.Snapshot(ui.KindStatus); err == nil {
		t.Fatal("expected non-preview kind to be rejected")
	}
}
