package ui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"time"
)

// maxAlerts bounds the recent-alert ring kept for status output.
const maxAlerts = 20

// ErrNoFrame is returned when no preview of the requested kind arrived yet.
var ErrNoFrame = errors.New("no preview frame received")

// Alert is a recent warning shown to the operator.
type Alert struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Snapshot is the folded UI state.
type Snapshot struct {
	QueueSize       int       `json:"queue_size"`
	IdentityChanges uint64    `json:"identity_changes"`
	StatusChanges   uint64    `json:"status_changes"`
	ColorFrames     uint64    `json:"color_frames"`
	EventFrames     uint64    `json:"event_frames"`
	LastColorFrame  time.Time `json:"last_color_frame"`
	LastEventFrame  time.Time `json:"last_event_frame"`
	Published       uint64    `json:"published"`
	Dropped         uint64    `json:"dropped"`
	Alerts          []Alert   `json:"alerts,omitempty"`
}

// State consumes a Bus and keeps the latest snapshot and preview frames.
type State struct {
	bus *Bus

	mu        sync.RWMutex
	snap      Snapshot
	lastColor image.Image
	lastEvent image.Image
}

// NewState returns a State fed by bus.
func NewState(bus *Bus) *State {
	return &State{bus: bus}
}

// Run folds events until ctx is done or the bus is closed.
func (s *State) Run(ctx context.Context) {
	events := s.bus.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.apply(ev)
		}
	}
}

func (s *State) apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case KindQueueSize:
		s.snap.QueueSize = ev.Value
	case KindIdentity:
		s.snap.IdentityChanges++
	case KindStatus:
		s.snap.StatusChanges++
	case KindColorFrame:
		s.snap.ColorFrames++
		s.snap.LastColorFrame = ev.At
		s.lastColor = ev.Frame
	case KindEventFrame:
		s.snap.EventFrames++
		s.snap.LastEventFrame = ev.At
		s.lastEvent = ev.Frame
	case KindAlert:
		s.snap.Alerts = append(s.snap.Alerts, Alert{At: ev.At, Message: ev.Message})
		if over := len(s.snap.Alerts) - maxAlerts; over > 0 {
			s.snap.Alerts = append([]Alert(nil), s.snap.Alerts[over:]...)
		}
	}
}

// Snapshot returns a copy of the folded state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snap
	snap.Alerts = append([]Alert(nil), s.snap.Alerts...)
	s.mu.RUnlock()
	snap.Published, snap.Dropped = s.bus.Stats()
	return snap
}

// Frame returns the latest preview of kind (KindColorFrame or KindEventFrame).
func (s *State) Frame(kind Kind) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var img image.Image
	switch kind {
	case KindColorFrame:
		img = s.lastColor
	case KindEventFrame:
		img = s.lastEvent
	default:
		return nil, errors.New("not a preview kind: " + kind.String())
	}
	if img == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

// FramePNG encodes the latest preview of kind as PNG.
func (s *State) FramePNG(kind Kind) ([]byte, error) {
	img, err := s.Frame(kind)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
