package writer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/catalog"
	"dsrec/internal/testsupport"
	"dsrec/internal/writer"
)

type queueSizes struct {
	mu    sync.Mutex
	sizes []int
}

func (q *queueSizes) QueueSize(n int) {
	q.mu.Lock()
	q.sizes = append(q.sizes, n)
	q.mu.Unlock()
}

func (q *queueSizes) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sizes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newWriter(t *testing.T, root string, opts writer.Options) *writer.Writer {
	t.Helper()
	opts.Root = root
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	w := writer.New(opts)
	w.Start(context.Background())
	t.Cleanup(w.Stop)
	return w
}

func TestTwoSessionsForSamePairGetSequentialFolders(t *testing.T) {
	root := t.TempDir()
	sizes := &queueSizes{}
	w := newWriter(t, root, writer.Options{Notifier: sizes})
	color := testsupport.NewStubReader(capture.ModalityColor)
	events := testsupport.NewStubReader(capture.ModalityEventStream)
	w.Register(color)
	w.Register(events)

	for i := 0; i < 2; i++ {
		w.NotifySave(3, 12)
		color.Ready(4)
		events.Ready(1)
	}

	first := filepath.Join(root, "A0003P0012", "S00")
	second := filepath.Join(root, "A0003P0012", "S01")
	waitFor(t, func() bool {
		return exists(filepath.Join(second, capture.ModalityEventStream, "000000.bin"))
	})
	for _, dir := range []string{first, second} {
		if !exists(filepath.Join(dir, capture.ModalityColor, "000003.bin")) {
			t.Fatalf("expected color frames under %s", dir)
		}
	}
	waitFor(t, func() bool { return sizes.count() == 2 })
	if w.Pending() != 0 {
		t.Fatalf("expected pending queue drained, got %d", w.Pending())
	}
}

func TestWriterWaitsForEveryReader(t *testing.T) {
	root := t.TempDir()
	w := newWriter(t, root, writer.Options{})
	color := testsupport.NewStubReader(capture.ModalityColor)
	events := testsupport.NewStubReader(capture.ModalityEventStream)
	w.Register(color)
	w.Register(events)

	w.NotifySave(1, 1)
	color.Ready(2)
	time.Sleep(50 * time.Millisecond)
	if color.Reads() != 0 || events.Reads() != 0 {
		t.Fatalf("Read called before all readers were ready: color=%d events=%d", color.Reads(), events.Reads())
	}
	if exists(filepath.Join(root, "A0001P0001")) {
		t.Fatal("no folder should be created before all readers are ready")
	}

	events.Ready(1)
	waitFor(t, func() bool { return color.Reads() == 1 && events.Reads() == 1 })
}

func TestFailingModalityDoesNotBlockOthers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	w := newWriter(t, cfg.Paths.DataDir, writer.Options{Catalog: store, Shot: func() int { return 7 }})

	broken := testsupport.NewStubReader(capture.ModalityEventStream)
	broken.Fail = errors.New("disk full")
	color := testsupport.NewStubReader(capture.ModalityColor)
	w.Register(broken)
	w.Register(color)

	w.NotifySave(2, 5)
	broken.Ready(1)
	color.Ready(3)

	session := filepath.Join(cfg.Paths.DataDir, "A0002P0005", "S00")
	waitFor(t, func() bool { return exists(filepath.Join(session, capture.ModalityColor, "000002.bin")) })

	var sessions []*catalog.Session
	waitFor(t, func() bool {
		var err error
		sessions, err = store.List(context.Background(), catalog.Filter{})
		return err == nil && len(sessions) == 1
	})
	got := sessions[0]
	if got.ShotID != 7 || got.Sequence != 0 || got.Path != session {
		t.Fatalf("unexpected catalog record: %+v", got)
	}
	failed := got.FailedModalities()
	if len(failed) != 1 || failed[0] != capture.ModalityEventStream {
		t.Fatalf("expected event_stream failure, got %v", failed)
	}
	for _, m := range got.Modalities {
		if m.Name == capture.ModalityColor && m.Items != 3 {
			t.Fatalf("expected 3 color items, got %d", m.Items)
		}
	}
}

func TestReadyWithoutPendingUsesFailsafe(t *testing.T) {
	root := t.TempDir()
	w := newWriter(t, root, writer.Options{})
	color := testsupport.NewStubReader(capture.ModalityColor)
	w.Register(color)

	color.Ready(1)
	waitFor(t, func() bool {
		return exists(filepath.Join(root, "A-001P-001", "S00", capture.ModalityColor, "000000.bin"))
	})
}

func TestStopDrainsReadyCycles(t *testing.T) {
	root := t.TempDir()
	w := writer.New(writer.Options{Root: root, PollInterval: time.Hour})
	color := testsupport.NewStubReader(capture.ModalityColor)
	w.Register(color)
	w.Start(context.Background())

	w.NotifySave(4, 4)
	color.Ready(1)
	w.NotifySave(4, 4)
	color.Ready(1)
	w.Stop()

	for _, name := range []string{"S00", "S01"} {
		if !exists(filepath.Join(root, "A0004P0004", name, capture.ModalityColor)) {
			t.Fatalf("expected %s written during drain", name)
		}
	}
}

func TestNoReadersNeverWrites(t *testing.T) {
	root := t.TempDir()
	w := newWriter(t, root, writer.Options{})
	w.NotifySave(1, 1)
	time.Sleep(30 * time.Millisecond)
	if w.Pending() != 1 {
		t.Fatalf("expected save to stay pending, got %d", w.Pending())
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root, got %d entries", len(entries))
	}
}

func TestAllocateSessionSkipsExistingNames(t *testing.T) {
	root := t.TempDir()
	stamp := capture.Stamp{ActionID: 9, PersonID: 1}
	person := writer.PersonDir(root, stamp)
	// S00 was deleted by hand; S01 remains.
	if err := os.MkdirAll(filepath.Join(person, "S01"), 0o755); err != nil {
		t.Fatal(err)
	}

	dir, seq, err := writer.AllocateSession(root, stamp)
	if err != nil {
		t.Fatalf("AllocateSession: %v", err)
	}
	if seq != 2 || filepath.Base(dir) != "S02" {
		t.Fatalf("expected S02, got %s (seq %d)", dir, seq)
	}

	dir, seq, err = writer.AllocateSession(root, stamp)
	if err != nil {
		t.Fatalf("AllocateSession: %v", err)
	}
	if seq != 3 || filepath.Base(dir) != "S03" {
		t.Fatalf("expected S03, got %s (seq %d)", dir, seq)
	}
}

func TestAllocateSessionConcurrent(t *testing.T) {
	root := t.TempDir()
	stamp := capture.Stamp{ActionID: 1, PersonID: 2}
	const n = 8
	var wg sync.WaitGroup
	seqs := make(chan int, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, seq, err := writer.AllocateSession(root, stamp)
			if err != nil {
				t.Errorf("AllocateSession: %v", err)
				return
			}
			seqs <- seq
		}()
	}
	wg.Wait()
	close(seqs)
	seen := map[int]bool{}
	for seq := range seqs {
		if seen[seq] {
			t.Fatalf("sequence %d allocated twice", seq)
		}
		seen[seq] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct sequences, got %d", n, len(seen))
	}
}
