// Package hotplug watches udev for sensor USB attach and detach so a camera
// that drops off the bus mid-shoot is reported immediately instead of
// surfacing later as frame timeouts.
package hotplug

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"dsrec/internal/logging"
)

// Action is the kind of USB change.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Event describes a sensor USB change.
type Event struct {
	Action  Action
	Vendor  string
	Product string
	Model   string
	DevPath string
}

// Handler is called for every matching event on the monitor goroutine.
type Handler func(ctx context.Context, ev Event)

// Monitor listens for udev netlink USB events from the configured vendors.
type Monitor struct {
	logger  *slog.Logger
	vendors map[string]struct{}
	handler Handler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New returns a monitor for vendorIDs (lowercase hex, e.g. "8086"). It returns
// nil when vendorIDs is empty.
func New(vendorIDs []string, handler Handler, logger *slog.Logger) *Monitor {
	vendors := make(map[string]struct{}, len(vendorIDs))
	for _, id := range vendorIDs {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			vendors[id] = struct{}{}
		}
	}
	if len(vendors) == 0 {
		return nil
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		vendors: vendors,
		handler: handler,
	}
}

// Start connects to the udev netlink socket. Failure to connect is logged and
// not returned; recording works without hotplug reporting.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	matcher, err := buildMatcher()
	if err != nil {
		return fmt.Errorf("build udev matcher: %w", err)
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; sensor hotplug not monitored", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the recorder may open netlink sockets"),
			logging.String(logging.FieldImpact, "sensor disconnects only show up as frame timeouts"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	go m.loop(ctx, conn, matcher, m.quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.Int("vendors", len(m.vendors)),
	)
	return nil
}

// Stop closes the netlink socket.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("hotplug monitor stopped", logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
}

// Running reports whether the monitor is connected.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, matcher netlink.Matcher, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, matcher)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "sensor hotplug events may be missed"),
			)
		}
	}
}

// buildMatcher matches USB device add/remove events.
func buildMatcher() (netlink.Matcher, error) {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
		},
	})
	if err := rules.Compile(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	ev, ok := parseEvent(uevent)
	if !ok {
		return
	}
	if _, watched := m.vendors[ev.Vendor]; !watched {
		m.logger.Debug("ignoring usb event for unwatched vendor",
			logging.String("vendor", ev.Vendor),
			logging.String("action", string(ev.Action)),
		)
		return
	}

	attrs := []logging.Attr{
		logging.String("vendor", ev.Vendor),
		logging.String("product", ev.Product),
		logging.String("model", ev.Model),
		logging.String("devpath", ev.DevPath),
	}
	if ev.Action == ActionRemove {
		logging.WarnWithContext(m.logger, "sensor disconnected", "sensor_detached",
			append(attrs,
				logging.String(logging.FieldErrorHint, "reseat the USB cable; restart dsrec once the sensor is back"),
				logging.String(logging.FieldImpact, "frames from this sensor stop until it reconnects"),
			)...,
		)
	} else {
		m.logger.Info("sensor connected", append(logging.Args(attrs...), logging.String(logging.FieldEventType, "sensor_attached"))...)
	}
	if m.handler != nil {
		m.handler(ctx, ev)
	}
}

// parseEvent extracts vendor and product ids, preferring udev properties and
// falling back to the kernel PRODUCT=vid/pid/bcd triple.
func parseEvent(uevent netlink.UEvent) (Event, bool) {
	var action Action
	switch uevent.Action {
	case netlink.ADD:
		action = ActionAdd
	case netlink.REMOVE:
		action = ActionRemove
	default:
		return Event{}, false
	}

	vendor := strings.ToLower(uevent.Env["ID_VENDOR_ID"])
	product := strings.ToLower(uevent.Env["ID_MODEL_ID"])
	if vendor == "" {
		parts := strings.Split(uevent.Env["PRODUCT"], "/")
		if len(parts) < 2 || parts[0] == "" {
			return Event{}, false
		}
		vendor = padID(parts[0])
		product = padID(parts[1])
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		devpath = uevent.KObj
	}
	return Event{
		Action:  action,
		Vendor:  vendor,
		Product: product,
		Model:   uevent.Env["ID_MODEL"],
		DevPath: devpath,
	}, true
}

// padID normalizes a kernel hex id ("b07") to udev's four-digit form ("0b07").
func padID(id string) string {
	id = strings.ToLower(id)
	if len(id) < 4 {
		id = strings.Repeat("0", 4-len(id)) + id
	}
	return id
}
