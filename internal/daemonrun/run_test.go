package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/logging"
	"dsrec/internal/testsupport"
)

func TestRunReturnsDeviceOpenError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true), testsupport.WithDrivers("sim", "missing"))
	cfg.Logging.Level = "error"

	err := Run(context.Background(), cfg, Options{})
	var openErr *capture.DeviceOpenError
	if !errors.As(err, &openErr) || openErr.Device != "event" {
		t.Fatalf("expected event DeviceOpenError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, PIDFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(cfg.SocketPath()); !os.IsNotExist(err) {
		t.Fatalf("expected socket to be removed, stat err = %v", err)
	}
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaster(true))
	cfg.Logging.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{}) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pid, err := ReadPID(cfg.Paths.LogDir); err == nil && pid == os.Getpid() {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("daemon never wrote its pid file")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	link := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}
}

func TestEnsureCurrentLogPointerReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "dsrec-1.log")
	second := filepath.Join(dir, "dsrec-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "dsrec-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, PIDFileName), []byte("abc\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ReadPID(dir); err == nil {
		t.Fatal("expected parse error")
	}
	if err := writePIDFile(filepath.Join(dir, PIDFileName)); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := ReadPID(dir)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
}
