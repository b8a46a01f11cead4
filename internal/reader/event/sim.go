package event

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"os"
	"sync"
	"time"
)

func init() {
	Register("sim", openSim)
}

// simEventSize is the on-disk size of one synthetic event: x, y (uint16),
// polarity-packed timestamp in microseconds (uint32).
const simEventSize = 8

// simDevice emits random events at a fixed rate. The FPN file, when set, must
// exist so misconfiguration surfaces at open time like on real hardware.
type simDevice struct {
	cfg DeviceConfig

	mu        sync.Mutex
	closed    bool
	recording bool
	stop      chan struct{}
	done      chan struct{}
	recErr    error
}

func openSim(cfg DeviceConfig) (Device, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("sim: width and height must be positive")
	}
	if cfg.FPNFile != "" {
		if _, err := os.Stat(cfg.FPNFile); err != nil {
			return nil, fmt.Errorf("sim: fpn file: %w", err)
		}
	}
	return &simDevice{cfg: cfg}, nil
}

func (d *simDevice) StartRecording(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("sim: device closed")
	}
	if d.recording {
		return errors.New("sim: already recording")
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sim: create stream: %w", err)
	}
	d.recording = true
	d.recErr = nil
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.record(file, d.stop, d.done)
	return nil
}

func (d *simDevice) record(file *os.File, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	w := bufio.NewWriter(file)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	var buf [simEventSize]byte
	var err error
	for err == nil {
		select {
		case <-stop:
			if ferr := w.Flush(); ferr != nil {
				err = ferr
			}
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			d.mu.Lock()
			d.recErr = err
			d.mu.Unlock()
			return
		case now := <-ticker.C:
			ts := uint32(now.Sub(start).Microseconds())
			for range 16 {
				binary.LittleEndian.PutUint16(buf[0:2], uint16(rand.IntN(d.cfg.Width)))
				binary.LittleEndian.PutUint16(buf[2:4], uint16(rand.IntN(d.cfg.Height)))
				binary.LittleEndian.PutUint32(buf[4:8], ts<<1|uint32(rand.IntN(2)))
				if _, err = w.Write(buf[:]); err != nil {
					break
				}
			}
		}
	}
	_ = file.Close()
	d.mu.Lock()
	d.recErr = err
	d.mu.Unlock()
	<-stop
}

func (d *simDevice) StopRecording() error {
	d.mu.Lock()
	if !d.recording {
		d.mu.Unlock()
		return nil
	}
	d.recording = false
	stop, done := d.stop, d.done
	d.mu.Unlock()

	close(stop)
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recErr
}

func (d *simDevice) Preview() (*image.Gray, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, errors.New("sim: device closed")
	}
	img := image.NewGray(image.Rect(0, 0, d.cfg.Width, d.cfg.Height))
	for i := range img.Pix {
		if rand.IntN(100) < 3 {
			img.Pix[i] = 255
		}
	}
	return img, nil
}

func (d *simDevice) Close() error {
	err := d.StopRecording()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return err
}
