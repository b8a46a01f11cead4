package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/catalog"
	"dsrec/internal/daemon"
	"dsrec/internal/ipc"
	"dsrec/internal/logging"
	"dsrec/internal/ui"
)

type fakeRecorder struct {
	mu        sync.Mutex
	recording bool
	identity  capture.Identity
	filter    catalog.Filter
	snapshot  ui.Kind
	master    bool
}

func (f *fakeRecorder) Status(context.Context) daemon.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := "idle"
	if f.recording {
		state = "recording"
	}
	return daemon.Status{
		Running:  true,
		Master:   f.master,
		State:    state,
		Identity: f.identity,
		UI: ui.Snapshot{
			QueueSize: 2,
			Alerts:    []ui.Alert{{At: time.Now(), Message: "WARN [rgbd] frame timeout"}},
		},
		Catalog: catalog.Summary{Sessions: 4, Failed: 1},
	}
}

func (f *fakeRecorder) Record() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.master {
		return false, daemon.ErrNotMaster
	}
	started := !f.recording
	f.recording = true
	return started, nil
}

func (f *fakeRecorder) StopSession() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stopped := f.recording
	f.recording = false
	return stopped, nil
}

func (f *fakeRecorder) Cancel() (bool, error) { return f.StopSession() }

func (f *fakeRecorder) StepAction(delta int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity.ActionID = max(0, f.identity.ActionID+delta)
	return true, nil
}

func (f *fakeRecorder) StepPerson(delta int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identity.PersonID+delta < 0 {
		return false, nil
	}
	f.identity.PersonID += delta
	return true, nil
}

func (f *fakeRecorder) SetShot(shot int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity.ShotID = shot
	return nil
}

func (f *fakeRecorder) Sessions(_ context.Context, filter catalog.Filter) ([]*catalog.Session, error) {
	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return []*catalog.Session{{
		ID:       "abc",
		ActionID: 1,
		PersonID: 2,
		Sequence: 3,
		Path:     "/data/A0001P0002/S03",
		Modalities: []catalog.Modality{
			{Name: capture.ModalityColor, Items: 30},
			{Name: capture.ModalityEventStream, Error: "disk full"},
		},
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
	}}, nil
}

func (f *fakeRecorder) Snapshot(kind ui.Kind) ([]byte, error) {
	f.mu.Lock()
	f.snapshot = kind
	f.mu.Unlock()
	if kind == ui.KindEventFrame {
		return nil, ui.ErrNoFrame
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func startServer(t *testing.T, rec ipc.Recorder) *ipc.Client {
	t.Helper()
	dir, err := os.MkdirTemp("", "dsrec-ipc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "dsrec.sock")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, socket, rec, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIPCSessionControl(t *testing.T) {
	rec := &fakeRecorder{master: true, identity: capture.Identity{ActionID: 1}}
	client := startServer(t, rec)

	record, err := client.Record()
	if err != nil || !record.Started {
		t.Fatalf("Record = %+v, %v", record, err)
	}
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.State != "recording" || status.ActionID != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.QueueSize != 2 || status.SessionsTotal != 4 || status.SessionsFailed != 1 {
		t.Fatalf("unexpected counters: %+v", status)
	}
	if len(status.Alerts) != 1 || !strings.Contains(status.Alerts[0], "frame timeout") {
		t.Fatalf("unexpected alerts: %v", status.Alerts)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}

	stop, err := client.Stop()
	if err != nil || !stop.Stopped {
		t.Fatalf("Stop = %+v, %v", stop, err)
	}
	cancelled, err := client.Cancel()
	if err != nil || cancelled.Cancelled {
		t.Fatalf("Cancel on idle = %+v, %v", cancelled, err)
	}
}

func TestIPCIdentityCommands(t *testing.T) {
	rec := &fakeRecorder{master: true}
	client := startServer(t, rec)

	step, err := client.StepAction(1)
	if err != nil || !step.Changed || step.ActionID != 1 {
		t.Fatalf("StepAction = %+v, %v", step, err)
	}
	step, err = client.StepPerson(-1)
	if err != nil || step.Changed || step.PersonID != 0 {
		t.Fatalf("StepPerson at zero = %+v, %v", step, err)
	}
	if _, err := client.StepAction(0); err == nil {
		t.Fatal("expected zero delta to be rejected")
	}
	shot, err := client.SetShot(7)
	if err != nil || shot.ShotID != 7 {
		t.Fatalf("SetShot = %+v, %v", shot, err)
	}
	if rec.Status(context.Background()).Identity.ShotID != 7 {
		t.Fatal("shot id not applied")
	}
}

func TestIPCPropagatesRecorderErrors(t *testing.T) {
	client := startServer(t, &fakeRecorder{master: false})
	_, err := client.Record()
	if err == nil || !strings.Contains(err.Error(), daemon.ErrNotMaster.Error()) {
		t.Fatalf("expected not-master error, got %v", err)
	}
}

func TestIPCSessions(t *testing.T) {
	rec := &fakeRecorder{master: true}
	client := startServer(t, rec)

	action := 1
	resp, err := client.Sessions(ipc.SessionsRequest{ActionID: &action, Limit: 5})
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(resp.Sessions))
	}
	got := resp.Sessions[0]
	if got.Path != "/data/A0001P0002/S03" || got.Items[capture.ModalityColor] != 30 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Failed) != 1 || got.Failed[0] != capture.ModalityEventStream {
		t.Fatalf("unexpected failed modalities: %v", got.Failed)
	}
	if got.StartedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected start time %q", got.StartedAt)
	}

	rec.mu.Lock()
	filter := rec.filter
	rec.mu.Unlock()
	if filter.ActionID == nil || *filter.ActionID != 1 || filter.PersonID != nil || filter.Limit != 5 {
		t.Fatalf("filter not forwarded: %+v", filter)
	}
}

func TestIPCSnapshot(t *testing.T) {
	rec := &fakeRecorder{master: true}
	client := startServer(t, rec)

	resp, err := client.Snapshot("color")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if string(resp.PNG[1:4]) != "PNG" {
		t.Fatalf("unexpected payload %v", resp.PNG)
	}
	if _, err := client.Snapshot("event"); err == nil || !strings.Contains(err.Error(), ui.ErrNoFrame.Error()) {
		t.Fatalf("expected no-frame error, got %v", err)
	}
	if _, err := client.Snapshot("thermal"); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}

func TestParseSnapshotKind(t *testing.T) {
	tests := map[string]ui.Kind{
		"color":  ui.KindColorFrame,
		" RGB ":  ui.KindColorFrame,
		"event":  ui.KindEventFrame,
		"Events": ui.KindEventFrame,
	}
	for input, want := range tests {
		got, err := ipc.ParseSnapshotKind(input)
		if err != nil || got != want {
			t.Fatalf("ParseSnapshotKind(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ipc.ParseSnapshotKind(""); err == nil {
		t.Fatal("expected empty kind to be rejected")
	}
}
