// Package runnable provides the start/stop lifecycle shared by every
// background component: the controller's sync listener, the sensor readers and
// the write coordinator.
package runnable

import (
	"context"
	"sync"
)

// Proc is a cooperative loop. It must return promptly once ctx is done,
// checking at intervals of 100ms or less.
type Proc func(ctx context.Context)

// Runner runs a Proc on its own goroutine.
type Runner struct {
	proc Proc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a Runner for proc.
func New(proc Proc) *Runner {
	return &Runner{proc: proc}
}

// Start launches the proc. Calling Start on a running Runner is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.running = true

	go func() {
		defer close(done)
		r.proc(runCtx)
	}()
}

// Stop cancels the proc and waits for it to return. Calling Stop on a stopped
// Runner is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.running = false
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the proc has been started and not stopped.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
