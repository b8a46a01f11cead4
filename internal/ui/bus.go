// Package ui is the boundary between the recorder and whatever renders it.
// Producers publish one-way events that never block capture; a single
// consumer folds them into a snapshot served to the CLI.
package ui

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Notifier is the surface the controller, readers and writer publish to.
// Every method must return immediately.
type Notifier interface {
	QueueSize(int)
	IdentityChanged()
	StatusChanged()
	ColorFrame(image.Image)
	EventFrame(image.Image)
}

// Kind identifies an event.
type Kind int

const (
	KindQueueSize Kind = iota
	KindIdentity
	KindStatus
	KindColorFrame
	KindEventFrame
	KindAlert
)

var kindNames = [...]string{"queue_size", "identity", "status", "color_frame", "event_frame", "alert"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Event is one UI notification.
type Event struct {
	Kind    Kind
	At      time.Time
	Value   int
	Frame   image.Image
	Message string
}

// DefaultCapacity is the bus buffer used when none is given.
const DefaultCapacity = 64

// Bus is a bounded, drop-on-full event channel. It implements Notifier.
type Bus struct {
	events chan Event

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus returns a bus buffering up to capacity events.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{events: make(chan Event, capacity)}
}

// Events exposes the channel to the single consumer. It is closed by Close.
func (b *Bus) Events() <-chan Event { return b.events }

// Publish enqueues ev, dropping it when the buffer is full or the bus closed.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.dropped.Add(1)
		return
	}
	b.published.Add(1)
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Close stops accepting events and closes the channel.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.events)
		b.mu.Unlock()
	})
}

// Stats reports how many events were published and how many were dropped.
func (b *Bus) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

func (b *Bus) QueueSize(n int) { b.Publish(Event{Kind: KindQueueSize, Value: n}) }

func (b *Bus) IdentityChanged() { b.Publish(Event{Kind: KindIdentity}) }

func (b *Bus) StatusChanged() { b.Publish(Event{Kind: KindStatus}) }

func (b *Bus) ColorFrame(img image.Image) { b.Publish(Event{Kind: KindColorFrame, Frame: img}) }

func (b *Bus) EventFrame(img image.Image) { b.Publish(Event{Kind: KindEventFrame, Frame: img}) }

// Alert publishes a warning line for display.
func (b *Bus) Alert(message string) { b.Publish(Event{Kind: KindAlert, Message: message}) }
