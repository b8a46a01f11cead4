package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"dsrec/internal/capture"
)

// StubReader is a capture.Readable whose ready jobs are pushed by the test.
// Each job writes one file per item into its modality folder.
type StubReader struct {
	Modality string
	// Fail makes every save return this error.
	Fail error

	mu    sync.Mutex
	jobs  [][]capture.Payload
	reads atomic.Int64
}

// NewStubReader returns a reader producing payloads for modality.
func NewStubReader(modality string) *StubReader {
	return &StubReader{Modality: modality}
}

// Ready queues a job with items files.
func (s *StubReader) Ready(items int) {
	payload := capture.Payload{Modality: s.Modality, Save: s.save, Data: items}
	s.mu.Lock()
	s.jobs = append(s.jobs, []capture.Payload{payload})
	s.mu.Unlock()
}

func (s *StubReader) Poll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs) > 0
}

func (s *StubReader) Read() []capture.Payload {
	s.reads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job
}

// Reads returns how many times Read was called.
func (s *StubReader) Reads() int { return int(s.reads.Load()) }

func (s *StubReader) save(dir string, data any) error {
	if s.Fail != nil {
		return s.Fail
	}
	items, ok := data.(int)
	if !ok {
		return fmt.Errorf("stub payload has type %T", data)
	}
	for i := range items {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%06d.bin", i)), []byte{byte(i)}, 0o644); err != nil {
			return err
		}
	}
	return nil
}
