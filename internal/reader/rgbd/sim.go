package rgbd

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"
)

func init() {
	Register("sim", openSim)
}

// simDevice synthesizes a moving gradient at the configured frame rate.
type simDevice struct {
	cfg      DeviceConfig
	interval time.Duration

	mu     sync.Mutex
	next   time.Time
	seq    uint64
	closed bool
}

func openSim(cfg DeviceConfig) (Device, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("sim: width and height must be positive")
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return &simDevice{cfg: cfg, interval: time.Second / time.Duration(fps), next: time.Now()}, nil
}

func (d *simDevice) Frame(ctx context.Context) (Frame, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Frame{}, errors.New("sim: device closed")
	}
	wait := time.Until(d.next)
	d.next = d.next.Add(d.interval)
	if now := time.Now(); d.next.Before(now) {
		d.next = now
	}
	seq := d.seq
	d.seq++
	d.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-timer.C:
		}
	}
	return d.render(seq), nil
}

func (d *simDevice) render(seq uint64) Frame {
	w, h := d.cfg.Width, d.cfg.Height
	colorImg := image.NewRGBA(image.Rect(0, 0, w, h))
	depthImg := image.NewGray16(image.Rect(0, 0, w, h))
	shift := int(seq % uint64(w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x + shift) * 255 / w)
			colorImg.SetRGBA(x, y, color.RGBA{R: v, G: uint8(y * 255 / h), B: 255 - v, A: 255})
			depthImg.SetGray16(x, y, color.Gray16{Y: uint16(500 + (x+y+shift)%3500)})
		}
	}
	return Frame{Color: colorImg, Depth: depthImg, Seq: seq, Captured: time.Now()}
}

func (d *simDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
