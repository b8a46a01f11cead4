// Package testsupport builds configs, catalogs and stub sensors for tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"dsrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sync traffic stays on loopback so tests never touch the studio network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "dataset")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Sync.BroadcastAddr = "127.0.0.1"
	cfgVal.Sync.BindAddr = "127.0.0.1"
	cfgVal.RGBD.Width, cfgVal.RGBD.Height, cfgVal.RGBD.FPS = 16, 12, 100
	cfgVal.Event.Width, cfgVal.Event.Height = 16, 10
	cfgVal.Writer.PollIntervalMS = 5
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure test directories: %v", err)
	}
	return builder.cfg
}

// WithMaster sets the node role.
func WithMaster(master bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Node.Master = master
	}
}

// WithSyncPort points the sync channel at port.
func WithSyncPort(port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.Port = port
	}
}

// WithDrivers selects sensor drivers.
func WithDrivers(rgbdDriver, eventDriver string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RGBD.Driver = rgbdDriver
		b.cfg.Event.Driver = eventDriver
	}
}

// WithIdentity sets the initial session ids.
func WithIdentity(action, person, shot int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.ActionID = action
		b.cfg.Session.PersonID = person
		b.cfg.Session.ShotID = shot
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
