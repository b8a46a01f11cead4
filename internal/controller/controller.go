package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/logging"
	"dsrec/internal/netsync"
	"dsrec/internal/runnable"
)

// State is the session state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Broadcaster publishes session control to subordinates.
type Broadcaster interface {
	SetIdentity(capture.Identity)
	NotifyUpdate() error
	NotifyRecord() error
	NotifyStop() error
	NotifyCancel() error
}

// Receiver delivers session control from the master.
type Receiver interface {
	Wait(ctx context.Context, timeout time.Duration) (netsync.Message, netsync.Receipt, error)
}

// Notifier receives one-way UI notifications. Implementations must not block.
type Notifier interface {
	StatusChanged()
	IdentityChanged()
}

const defaultReceiveTimeout = 100 * time.Millisecond

// Options configures a Controller.
type Options struct {
	Master         bool
	Broadcaster    Broadcaster
	Receiver       Receiver
	Identity       capture.Identity
	ReceiveTimeout time.Duration
	Logger         *slog.Logger
}

// Controller is the session state machine.
type Controller struct {
	master         bool
	broadcaster    Broadcaster
	receiver       Receiver
	receiveTimeout time.Duration
	logger         *slog.Logger
	listener       *runnable.Runner

	// transition serializes every mutation including its fan-out.
	transition sync.Mutex

	mu        sync.RWMutex
	state     State
	identity  capture.Identity
	callbacks []capture.Callback
	notifier  Notifier
}

// New builds a Controller. A master needs a Broadcaster; a subordinate needs a
// Receiver.
func New(opts Options) (*Controller, error) {
	if opts.Master && opts.Broadcaster == nil {
		return nil, errors.New("master controller requires a broadcaster")
	}
	if !opts.Master && opts.Receiver == nil {
		return nil, errors.New("subordinate controller requires a receiver")
	}
	timeout := opts.ReceiveTimeout
	if timeout <= 0 {
		timeout = defaultReceiveTimeout
	}
	c := &Controller{
		master:         opts.Master,
		broadcaster:    opts.Broadcaster,
		receiver:       opts.Receiver,
		receiveTimeout: timeout,
		logger:         logging.NewComponentLogger(opts.Logger, "controller"),
		identity:       clampIdentity(opts.Identity),
	}
	c.listener = runnable.New(c.listen)
	if c.master {
		c.broadcaster.SetIdentity(c.identity)
	}
	return c, nil
}

// Register adds a callback that follows every session transition. A callback
// registered while a session is recording receives NotifyRecord at once, so
// the next NotifySave always has a job to stamp.
func (c *Controller) Register(cb capture.Callback) {
	if cb == nil {
		return
	}
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	c.callbacks = append(c.callbacks, cb)
	recording := c.state == Recording
	c.mu.Unlock()
	if recording {
		c.logger.Info("callback joined a recording session")
		cb.NotifyRecord()
	}
}

// SetNotifier installs the UI boundary.
func (c *Controller) SetNotifier(n Notifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// IsMaster reports whether this node broadcasts session control.
func (c *Controller) IsMaster() bool { return c.master }

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsRecording reports whether a session is active.
func (c *Controller) IsRecording() bool {
	return c.State() == Recording
}

// Identity returns the current session identity.
func (c *Controller) Identity() capture.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetRecord starts a session. It is a no-op while recording.
func (c *Controller) SetRecord() {
	c.transition.Lock()
	defer c.transition.Unlock()

	if !c.setState(Idle, Recording) {
		return
	}
	id := c.Identity()
	c.logger.Info("recording started", logging.Args(logging.Session(id.ActionID, id.PersonID, id.ShotID)...)...)
	if c.master {
		c.broadcast("record", c.broadcaster.NotifyRecord)
	}
	for _, cb := range c.snapshotCallbacks() {
		cb.NotifyRecord()
	}
	c.notifyStatus()
}

// SetStop ends a session and asks every callback to save it. It is a no-op
// while idle.
func (c *Controller) SetStop() {
	c.transition.Lock()
	defer c.transition.Unlock()

	if !c.setState(Recording, Idle) {
		return
	}
	id := c.Identity()
	c.logger.Info("recording stopped", logging.Args(logging.Session(id.ActionID, id.PersonID, id.ShotID)...)...)
	c.notifyStatus()
	if c.master {
		c.broadcast("stop", c.broadcaster.NotifyStop)
	}
	for _, cb := range c.snapshotCallbacks() {
		cb.NotifySave(id.ActionID, id.PersonID)
	}
}

// SetCancel ends a session and discards it. It is a no-op while idle.
func (c *Controller) SetCancel() {
	c.transition.Lock()
	defer c.transition.Unlock()

	if !c.setState(Recording, Idle) {
		return
	}
	id := c.Identity()
	c.logger.Info("recording canceled", logging.Args(logging.Session(id.ActionID, id.PersonID, id.ShotID)...)...)
	if c.master {
		c.broadcast("cancel", c.broadcaster.NotifyCancel)
	}
	for _, cb := range c.snapshotCallbacks() {
		cb.NotifyCancel()
	}
	c.notifyStatus()
}

// SetActionID stores the action id. Negative values clamp to 0.
func (c *Controller) SetActionID(v int) {
	c.transition.Lock()
	defer c.transition.Unlock()
	c.updateIdentity(func(id *capture.Identity) { id.ActionID = v })
}

// SetPersonID stores the person id. Negative values clamp to 0.
func (c *Controller) SetPersonID(v int) {
	c.transition.Lock()
	defer c.transition.Unlock()
	c.updateIdentity(func(id *capture.Identity) { id.PersonID = v })
}

// SetShotID stores the shot id. Negative values clamp to 0.
func (c *Controller) SetShotID(v int) {
	c.transition.Lock()
	defer c.transition.Unlock()
	c.updateIdentity(func(id *capture.Identity) { id.ShotID = v })
}

// SetIdentity stores all three ids with a single notification.
func (c *Controller) SetIdentity(next capture.Identity) {
	c.transition.Lock()
	defer c.transition.Unlock()
	c.updateIdentity(func(id *capture.Identity) { *id = next })
}

// StepAction adds delta to the action id on behalf of the UI. It is a no-op
// while recording or when the result would be negative.
func (c *Controller) StepAction(delta int) bool {
	return c.step(delta, func(id *capture.Identity) *int { return &id.ActionID })
}

// StepPerson adds delta to the person id on behalf of the UI. It is a no-op
// while recording or when the result would be negative.
func (c *Controller) StepPerson(delta int) bool {
	return c.step(delta, func(id *capture.Identity) *int { return &id.PersonID })
}

func (c *Controller) step(delta int, field func(*capture.Identity) *int) bool {
	c.transition.Lock()
	defer c.transition.Unlock()

	if c.IsRecording() || delta == 0 {
		return false
	}
	current := c.Identity()
	next := *field(&current) + delta
	if next < 0 {
		return false
	}
	c.updateIdentity(func(id *capture.Identity) { *field(id) = next })
	return true
}

// updateIdentity must be called with transition held.
func (c *Controller) updateIdentity(mutate func(*capture.Identity)) {
	c.mu.Lock()
	id := c.identity
	mutate(&id)
	id = clampIdentity(id)
	c.identity = id
	notifier := c.notifier
	c.mu.Unlock()

	c.logger.Debug("identity updated", logging.Args(logging.Session(id.ActionID, id.PersonID, id.ShotID)...)...)
	if c.master {
		c.broadcaster.SetIdentity(id)
		c.broadcast("update", c.broadcaster.NotifyUpdate)
	}
	if notifier != nil {
		notifier.IdentityChanged()
	}
}

func (c *Controller) setState(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

func (c *Controller) snapshotCallbacks() []capture.Callback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]capture.Callback(nil), c.callbacks...)
}

func (c *Controller) notifyStatus() {
	c.mu.RLock()
	notifier := c.notifier
	c.mu.RUnlock()
	if notifier != nil {
		notifier.StatusChanged()
	}
}

func (c *Controller) broadcast(ctrl string, send func() error) {
	if err := send(); err != nil {
		logging.WarnWithContext(c.logger, "sync broadcast failed", "sync_broadcast_failed",
			logging.String("ctrl", ctrl),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check sync.broadcast_addr and the network interface"),
			logging.String(logging.FieldImpact, "subordinate nodes may not follow this transition"),
		)
	}
}

func clampIdentity(id capture.Identity) capture.Identity {
	id.ActionID = max(id.ActionID, 0)
	id.PersonID = max(id.PersonID, 0)
	id.ShotID = max(id.ShotID, 0)
	return id
}
