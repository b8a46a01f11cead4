package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNode(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateDevices(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateNode() error {
	if _, ok := NormalizeLayout(c.Node.Layout); !ok {
		return fmt.Errorf("node.layout: unsupported value %q (use %q or %q)", c.Node.Layout, LayoutPortrait, LayoutLandscape)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Port <= 0 || c.Sync.Port > 65535 {
		return fmt.Errorf("sync.port must be between 1 and 65535, got %d", c.Sync.Port)
	}
	if net.ParseIP(c.Sync.BroadcastAddr) == nil {
		return fmt.Errorf("sync.broadcast_addr: invalid IP address %q", c.Sync.BroadcastAddr)
	}
	if net.ParseIP(c.Sync.BindAddr) == nil {
		return fmt.Errorf("sync.bind_addr: invalid IP address %q", c.Sync.BindAddr)
	}
	return nil
}

func (c *Config) validateSession() error {
	return ensureNonNegativeMap(map[string]int{
		"session.action_id": c.Session.ActionID,
		"session.person_id": c.Session.PersonID,
		"session.shot_id":   c.Session.ShotID,
	})
}

func (c *Config) validateDevices() error {
	if err := ensurePositiveMap(map[string]int{
		"rgbd.width":                    c.RGBD.Width,
		"rgbd.height":                   c.RGBD.Height,
		"rgbd.fps":                      c.RGBD.FPS,
		"rgbd.frame_timeout_ms":         c.RGBD.FrameTimeoutMS,
		"event.width":                   c.Event.Width,
		"event.height":                  c.Event.Height,
		"writer.poll_interval_ms":       c.Writer.PollIntervalMS,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Event.Threshold < 0 {
		return errors.New("event.threshold must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}

func sortedKeys(values map[string]int) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
