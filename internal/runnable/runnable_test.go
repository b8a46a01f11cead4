package runnable_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"dsrec/internal/runnable"
)

func TestStartStopIdempotent(t *testing.T) {
	var starts atomic.Int32
	var exits atomic.Int32
	r := runnable.New(func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
		exits.Add(1)
	})

	r.Stop()
	r.Start(context.Background())
	r.Start(context.Background())
	if !r.Running() {
		t.Fatal("expected runner to be running")
	}

	deadline := time.Now().Add(time.Second)
	for starts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	r.Stop()
	r.Stop()
	if r.Running() {
		t.Fatal("expected runner to be stopped")
	}
	if starts.Load() != 1 {
		t.Fatalf("expected proc started once, got %d", starts.Load())
	}
	if exits.Load() != 1 {
		t.Fatalf("expected Stop to join the proc, exits=%d", exits.Load())
	}
}

func TestStopReturnsPromptlyForPollingProc(t *testing.T) {
	var ticks atomic.Int64
	r := runnable.New(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
				ticks.Add(1)
			}
		}
	})
	r.Start(context.Background())
	time.Sleep(120 * time.Millisecond)

	started := time.Now()
	r.Stop()
	if elapsed := time.Since(started); elapsed > 200*time.Millisecond {
		t.Fatalf("stop took %v", elapsed)
	}
	if ticks.Load() == 0 {
		t.Fatal("expected proc to have run")
	}
}

func TestRestartAfterStop(t *testing.T) {
	var runs atomic.Int32
	r := runnable.New(func(ctx context.Context) {
		runs.Add(1)
		<-ctx.Done()
	})
	r.Start(context.Background())
	r.Stop()
	r.Start(context.Background())
	r.Stop()
	if runs.Load() != 2 {
		t.Fatalf("expected two runs, got %d", runs.Load())
	}
}

func TestParentContextCancelEndsProc(t *testing.T) {
	exited := make(chan struct{})
	r := runnable.New(func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("proc did not observe parent cancellation")
	}
	r.Stop()
}
