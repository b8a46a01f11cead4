package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Node describes the role of this recorder in a multi-machine setup.
type Node struct {
	Master bool   `toml:"master"`
	Layout string `toml:"layout"`
}

// Sync contains configuration for the UDP session-control channel.
type Sync struct {
	BroadcastAddr    string `toml:"broadcast_addr"`
	Port             int    `toml:"port"`
	BindAddr         string `toml:"bind_addr"`
	ReceiveTimeoutMS int    `toml:"receive_timeout_ms"`
}

// Session contains the identity a node starts with.
type Session struct {
	ActionID int `toml:"action_id"`
	PersonID int `toml:"person_id"`
	ShotID   int `toml:"shot_id"`
}

// RGBD contains configuration for the RGB-D camera reader.
type RGBD struct {
	Driver         string `toml:"driver"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	FPS            int    `toml:"fps"`
	FrameTimeoutMS int    `toml:"frame_timeout_ms"`
	PreviewWidth   int    `toml:"preview_width"`
	PreviewHeight  int    `toml:"preview_height"`
}

// Event contains configuration for the event camera reader.
type Event struct {
	Driver            string `toml:"driver"`
	Width             int    `toml:"width"`
	Height            int    `toml:"height"`
	Threshold         int    `toml:"threshold"`
	FPNFile           string `toml:"fpn_file"`
	PreviewIntervalMS int    `toml:"preview_interval_ms"`
	PreviewWidth      int    `toml:"preview_width"`
	PreviewHeight     int    `toml:"preview_height"`
}

// Writer contains configuration for the write coordinator.
type Writer struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SessionSaved   bool   `toml:"session_saved"`
	Errors         bool   `toml:"errors"`
}

// Hotplug contains configuration for the USB attach/detach watcher.
type Hotplug struct {
	Enabled   bool     `toml:"enabled"`
	VendorIDs []string `toml:"vendor_ids"`
}

// Config encapsulates all configuration values for dsrec.
//
// Configuration sections by subsystem:
//   - Paths: session output root, scratch space, logs and sockets
//   - Node: master/subordinate role and preview layout
//   - Sync: UDP broadcast channel for session control
//   - Session: initial action/person/shot ids
//   - RGBD, Event: sensor drivers and preview sizes
//   - Writer: write coordinator polling
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//   - Hotplug: udev watcher for sensor USB events
type Config struct {
	Paths         Paths         `toml:"paths"`
	Node          Node          `toml:"node"`
	Sync          Sync          `toml:"sync"`
	Session       Session       `toml:"session"`
	RGBD          RGBD          `toml:"rgbd"`
	Event         Event         `toml:"event"`
	Writer        Writer        `toml:"writer"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Hotplug       Hotplug       `toml:"hotplug"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dsrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for node operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ScratchDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "dsrec.sock")
}

// CatalogPath returns the session catalog database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.LogDir, "sessions.db")
}

// ReceiveTimeout returns the bounded wait used by the sync listener.
func (c *Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.Sync.ReceiveTimeoutMS) * time.Millisecond
}

// FrameTimeout returns how long the RGB-D reader waits for a frame.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.RGBD.FrameTimeoutMS) * time.Millisecond
}

// EventPreviewInterval returns the event reader's idle preview cadence.
func (c *Config) EventPreviewInterval() time.Duration {
	return time.Duration(c.Event.PreviewIntervalMS) * time.Millisecond
}

// WriterPollInterval returns the write coordinator's readiness poll interval.
func (c *Config) WriterPollInterval() time.Duration {
	return time.Duration(c.Writer.PollIntervalMS) * time.Millisecond
}

// Portrait reports whether previews are rotated for a portrait display.
func (c *Config) Portrait() bool {
	return c.Node.Layout == LayoutPortrait
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
