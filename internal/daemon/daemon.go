package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dsrec/internal/capture"
	"dsrec/internal/catalog"
	"dsrec/internal/config"
	"dsrec/internal/controller"
	"dsrec/internal/hotplug"
	"dsrec/internal/logging"
	"dsrec/internal/netsync"
	"dsrec/internal/notifications"
	"dsrec/internal/reader/event"
	"dsrec/internal/reader/rgbd"
	"dsrec/internal/ui"
	"dsrec/internal/writer"
)

// LockFileName is the single-instance lock inside paths.log_dir.
const LockFileName = "dsrec.lock"

const deviceErrorTimeout = 5 * time.Second

var (
	// ErrNotRunning is returned by commands issued while the daemon is stopped.
	ErrNotRunning = errors.New("dsrec daemon is not running")
	// ErrNotMaster is returned when a subordinate is asked to drive a session.
	ErrNotMaster = errors.New("session control is only available on the master node")
)

// Options carries optional collaborators. A nil Bus gets a private one; a nil
// Notifications service is built from the config.
type Options struct {
	Catalog       *catalog.Store
	Notifications notifications.Service
	Bus           *ui.Bus
}

// Daemon owns every runtime component of one recorder node.
type Daemon struct {
	cfg           *config.Config
	logger        *slog.Logger
	catalog       *catalog.Store
	notifications notifications.Service
	bus           *ui.Bus
	state         *ui.State

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	stateDone chan struct{}

	controller  *controller.Controller
	syncServer  *netsync.Server
	syncClient  *netsync.Client
	writer      *writer.Writer
	rgbdDevice  rgbd.Device
	rgbdReader  *rgbd.Reader
	eventDevice event.Device
	eventReader *event.Reader
	hotplug     *hotplug.Monitor
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	Master         bool
	State          string
	Identity       capture.Identity
	PendingSaves   int
	RGBDPending    int
	EventPending   int
	FramesAcquired uint64
	UI             ui.Snapshot
	Catalog        catalog.Summary
	DataDir        string
	CatalogPath    string
	LockFilePath   string
}

// New constructs a daemon. Components are created by Start.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = ui.NewBus(ui.DefaultCapacity)
	}
	notifier := opts.Notifications
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "daemon"),
		catalog:       opts.Catalog,
		notifications: notifier,
		bus:           bus,
		state:         ui.NewState(bus),
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and brings up the node: controller, write
// coordinator, RGB-D reader, event reader, the subordinate sync listener, then
// the hotplug watcher. Session control is only followed once every reader is
// registered. When a
// sensor fails to open everything already started is torn down and the
// returned error is a *capture.DeviceOpenError naming the sensor.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dsrec instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.stateDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		d.state.Run(runCtx)
	}(d.stateDone)

	if err := d.startController(); err != nil {
		d.teardown()
		return err
	}
	d.startWriter(runCtx)

	if err := d.openRGBD(); err != nil {
		d.teardown()
		d.reportDeviceError(ctx, err)
		return err
	}
	if err := d.openEvent(); err != nil {
		d.teardown()
		d.reportDeviceError(ctx, err)
		return err
	}
	for _, reader := range []interface {
		capture.Callback
		capture.Readable
	}{d.rgbdReader, d.eventReader} {
		d.controller.Register(reader)
		d.writer.Register(reader)
	}
	d.rgbdReader.Start(runCtx)
	d.eventReader.Start(runCtx)
	d.controller.Start(runCtx)

	if d.cfg.Hotplug.Enabled {
		d.hotplug = hotplug.New(d.cfg.Hotplug.VendorIDs, d.handleHotplug, d.logger)
		if err := d.hotplug.Start(runCtx); err != nil {
			logging.WarnWithContext(d.logger, "hotplug watcher unavailable", "hotplug_start_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "sensor disconnects surface only as frame timeouts"),
			)
		}
	}
	d.controller.SetNotifier(d.bus)

	d.running.Store(true)
	id := d.controller.Identity()
	attrs := []logging.Attr{
		logging.String("lock", d.lockPath),
		logging.Bool("master", d.controller.IsMaster()),
		logging.String("layout", d.cfg.Node.Layout),
		logging.String("data_dir", d.cfg.Paths.DataDir),
	}
	attrs = append(attrs, logging.Session(id.ActionID, id.PersonID, id.ShotID)...)
	d.logger.Info("dsrec daemon started", logging.Args(attrs...)...)
	return nil
}

// startController builds the controller and its sync transport. The
// subordinate listener is started by Start once the readers are registered.
func (d *Daemon) startController() error {
	opts := controller.Options{
		Master: d.cfg.Node.Master,
		Identity: capture.Identity{
			ActionID: d.cfg.Session.ActionID,
			PersonID: d.cfg.Session.PersonID,
			ShotID:   d.cfg.Session.ShotID,
		},
		ReceiveTimeout: d.cfg.ReceiveTimeout(),
		Logger:         d.logger,
	}
	if opts.Master {
		server, err := netsync.NewServer(netsync.ServerConfig{
			BroadcastAddr: d.cfg.Sync.BroadcastAddr,
			Port:          d.cfg.Sync.Port,
		}, d.logger)
		if err != nil {
			return fmt.Errorf("start sync server: %w", err)
		}
		d.syncServer = server
		opts.Broadcaster = server
	} else {
		client, err := netsync.NewClient(netsync.ClientConfig{
			BindAddr: d.cfg.Sync.BindAddr,
			Port:     d.cfg.Sync.Port,
		}, d.logger)
		if err != nil {
			return fmt.Errorf("start sync client: %w", err)
		}
		d.syncClient = client
		opts.Receiver = client
	}
	ctrl, err := controller.New(opts)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	d.controller = ctrl
	return nil
}

func (d *Daemon) startWriter(ctx context.Context) {
	var store writer.Catalog
	if d.catalog != nil {
		store = d.catalog
	}
	ctrl := d.controller
	d.writer = writer.New(writer.Options{
		Root:          d.cfg.Paths.DataDir,
		PollInterval:  d.cfg.WriterPollInterval(),
		Shot:          func() int { return ctrl.Identity().ShotID },
		Catalog:       store,
		Notifications: d.notifications,
		Notifier:      d.bus,
		Logger:        d.logger,
	})
	d.controller.Register(d.writer)
	d.writer.Start(ctx)
}

func (d *Daemon) openRGBD() error {
	dev, err := rgbd.Open(d.cfg.RGBD.Driver, rgbd.DeviceConfig{
		Width:  d.cfg.RGBD.Width,
		Height: d.cfg.RGBD.Height,
		FPS:    d.cfg.RGBD.FPS,
	})
	if err != nil {
		return err
	}
	d.rgbdDevice = dev
	d.rgbdReader = rgbd.New(rgbd.Options{
		Device:        dev,
		Notifier:      d.bus,
		FrameTimeout:  d.cfg.FrameTimeout(),
		PreviewWidth:  d.cfg.RGBD.PreviewWidth,
		PreviewHeight: d.cfg.RGBD.PreviewHeight,
		Portrait:      d.cfg.Portrait(),
		Logger:        d.logger,
	})
	return nil
}

func (d *Daemon) openEvent() error {
	dev, err := event.Open(d.cfg.Event.Driver, event.DeviceConfig{
		Width:     d.cfg.Event.Width,
		Height:    d.cfg.Event.Height,
		Threshold: d.cfg.Event.Threshold,
		FPNFile:   d.cfg.Event.FPNFile,
	})
	if err != nil {
		return err
	}
	d.eventDevice = dev
	d.eventReader = event.New(event.Options{
		Device:          dev,
		Notifier:        d.bus,
		ScratchDir:      d.cfg.Paths.ScratchDir,
		PreviewInterval: d.cfg.EventPreviewInterval(),
		PreviewWidth:    d.cfg.Event.PreviewWidth,
		PreviewHeight:   d.cfg.Event.PreviewHeight,
		Portrait:        d.cfg.Portrait(),
		Logger:          d.logger,
	})
	return nil
}

// Stop shuts the node down: readers (flushing any open session), the write
// coordinator's final drain, the sync listener, the hotplug watcher, and
// finally the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.teardown()
	d.running.Store(false)
	d.logger.Info("dsrec daemon stopped")
}

// teardown stops whatever Start created, in shutdown order. Callers hold mu.
func (d *Daemon) teardown() {
	if d.rgbdReader != nil {
		d.rgbdReader.Stop()
	}
	if d.eventReader != nil {
		d.eventReader.Stop()
	}
	if d.writer != nil {
		d.writer.Stop()
	}
	if d.controller != nil {
		d.controller.Stop()
	}
	d.hotplug.Stop()

	d.closeResource("rgbd device", d.rgbdDevice)
	d.closeResource("event device", d.eventDevice)
	if d.syncServer != nil {
		d.closeResource("sync server", d.syncServer)
	}
	if d.syncClient != nil {
		d.closeResource("sync client", d.syncClient)
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.stateDone != nil {
		<-d.stateDone
		d.stateDone = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.String("lock", d.lockPath),
			logging.Error(err),
		)
	}

	d.controller = nil
	d.syncServer = nil
	d.syncClient = nil
	d.writer = nil
	d.rgbdDevice = nil
	d.rgbdReader = nil
	d.eventDevice = nil
	d.eventReader = nil
	d.hotplug = nil
}

func (d *Daemon) closeResource(name string, c interface{ Close() error }) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		d.logger.Debug("close failed", logging.String("resource", name), logging.Error(err))
	}
}

// Close stops the daemon. The catalog is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

func (d *Daemon) reportDeviceError(ctx context.Context, err error) {
	var openErr *capture.DeviceOpenError
	device := "unknown"
	if errors.As(err, &openErr) {
		device = openErr.Device
	}
	logging.ErrorWithContext(d.logger, "sensor failed to open", "device_open_failed",
		logging.String("device", device),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the sensor USB connection and the configured driver"),
		logging.String(logging.FieldImpact, "node cannot record"),
	)
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deviceErrorTimeout)
	defer cancel()
	if nerr := d.notifications.Publish(notifyCtx, notifications.EventDeviceError, notifications.Payload{
		"device": device,
		"error":  err.Error(),
	}); nerr != nil {
		d.logger.Debug("device error notification failed", logging.Error(nerr))
	}
}

func (d *Daemon) handleHotplug(ctx context.Context, ev hotplug.Event) {
	if ev.Action != hotplug.ActionRemove {
		return
	}
	d.bus.Alert(fmt.Sprintf("sensor %s:%s disconnected", ev.Vendor, ev.Product))
	if err := d.notifications.Publish(ctx, notifications.EventDeviceError, notifications.Payload{
		"device": ev.Vendor + ":" + ev.Product,
		"error":  "USB device removed",
	}); err != nil {
		d.logger.Debug("hotplug notification failed", logging.Error(err))
	}
}

// Running reports whether Start has completed and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Bus exposes the UI event bus the daemon publishes to.
func (d *Daemon) Bus() *ui.Bus {
	return d.bus
}
