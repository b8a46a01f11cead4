// Package daemonrun hosts the foreground recorder process: logging, the IPC
// socket, signal handling and the daemon lifecycle.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"dsrec/internal/catalog"
	"dsrec/internal/config"
	"dsrec/internal/daemon"
	"dsrec/internal/ipc"
	"dsrec/internal/logging"
	"dsrec/internal/notifications"
	"dsrec/internal/reader/event"
	"dsrec/internal/ui"
)

// PIDFileName is written to paths.log_dir while the daemon runs.
const PIDFileName = "dsrec.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the recorder and blocks until SIGINT/SIGTERM or cmdCtx ends. A
// sensor that fails to open is returned as a *capture.DeviceOpenError so the
// caller can map it to an exit status.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("dsrec-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	baseLogger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	bus := ui.NewBus(ui.DefaultCapacity)
	defer bus.Close()
	logger := logging.TeeLogger(baseLogger, ui.NewAlertHandler(bus, slog.LevelWarn))
	logger = logging.WithRunID(logger, runID)

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Label: "run log", Dir: cfg.Paths.LogDir, Pattern: "dsrec-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Label: "event scratch", Dir: cfg.Paths.ScratchDir, Pattern: event.ScratchPattern},
	)
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		logger.Error("open session catalog", logging.Error(err))
		return err
	}
	defer store.Close()

	d, err := daemon.New(cfg, logger, daemon.Options{
		Catalog:       store,
		Notifications: notifications.NewService(cfg),
		Bus:           bus,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check sensor connections, drivers and the instance lock"),
			logging.String(logging.FieldImpact, "node exits without recording"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("dsrec daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(logDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(logDir, PIDFileName))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("config snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("master", cfg.Node.Master),
		logging.String("layout", cfg.Node.Layout),
		logging.String("sync_broadcast", cfg.Sync.BroadcastAddr),
		logging.Int("sync_port", cfg.Sync.Port),
		logging.String("rgbd_driver", cfg.RGBD.Driver),
		logging.String("event_driver", cfg.Event.Driver),
		logging.Bool("fpn_file_set", cfg.Event.FPNFile != ""),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("scratch_dir", cfg.Paths.ScratchDir),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("hotplug_enabled", cfg.Hotplug.Enabled),
	)
}
