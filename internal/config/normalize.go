package config

import (
	"fmt"
	"os"
	"strings"
)

var layoutAliases = map[string][]string{
	LayoutPortrait:  {"p", "v", "vertical"},
	LayoutLandscape: {"l", "h", "horizontal"},
}

// NormalizeLayout maps a layout name or one of its aliases to its canonical name.
func NormalizeLayout(value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for name, aliases := range layoutAliases {
		if value == name {
			return name, true
		}
		for _, alias := range aliases {
			if value == alias {
				return name, true
			}
		}
	}
	return "", false
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNode()
	c.normalizeSync()
	c.normalizeDevices()
	c.normalizeNotifications()
	c.normalizeHotplug()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	// Scratch recordings live next to the dataset unless told otherwise.
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = c.Paths.DataDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Event.FPNFile, err = expandPath(strings.TrimSpace(c.Event.FPNFile)); err != nil {
		return fmt.Errorf("event.fpn_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeNode() {
	if strings.TrimSpace(c.Node.Layout) == "" {
		c.Node.Layout = LayoutPortrait
		return
	}
	if layout, ok := NormalizeLayout(c.Node.Layout); ok {
		c.Node.Layout = layout
	}
}

func (c *Config) normalizeSync() {
	if value, ok := os.LookupEnv("DSREC_BROADCAST_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Sync.BroadcastAddr = value
	}
	c.Sync.BroadcastAddr = strings.TrimSpace(c.Sync.BroadcastAddr)
	if c.Sync.BroadcastAddr == "" {
		c.Sync.BroadcastAddr = defaultBroadcastAddr
	}
	c.Sync.BindAddr = strings.TrimSpace(c.Sync.BindAddr)
	if c.Sync.BindAddr == "" {
		c.Sync.BindAddr = defaultBindAddr
	}
	if c.Sync.ReceiveTimeoutMS <= 0 {
		c.Sync.ReceiveTimeoutMS = defaultReceiveTimeoutMS
	}
}

func (c *Config) normalizeDevices() {
	c.RGBD.Driver = strings.ToLower(strings.TrimSpace(c.RGBD.Driver))
	if c.RGBD.Driver == "" {
		c.RGBD.Driver = defaultDriver
	}
	c.Event.Driver = strings.ToLower(strings.TrimSpace(c.Event.Driver))
	if c.Event.Driver == "" {
		c.Event.Driver = defaultDriver
	}
	if c.RGBD.PreviewWidth <= 0 || c.RGBD.PreviewHeight <= 0 {
		c.RGBD.PreviewWidth, c.RGBD.PreviewHeight = defaultRGBDPreviewWidth, defaultRGBDPreviewHeight
	}
	if c.Event.PreviewWidth <= 0 || c.Event.PreviewHeight <= 0 {
		c.Event.PreviewWidth, c.Event.PreviewHeight = defaultEventPreviewWidth, defaultEventPreviewHeight
	}
	if c.Event.PreviewIntervalMS <= 0 {
		c.Event.PreviewIntervalMS = defaultEventPreviewIntervalMS
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeHotplug() {
	ids := make([]string, 0, len(c.Hotplug.VendorIDs))
	seen := make(map[string]struct{}, len(c.Hotplug.VendorIDs))
	for _, id := range c.Hotplug.VendorIDs {
		normalized := strings.ToLower(strings.TrimSpace(id))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		ids = append(ids, normalized)
	}
	c.Hotplug.VendorIDs = ids
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
