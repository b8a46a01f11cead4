package rgbd

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"dsrec/internal/capture"
)

// Frame is one aligned color and depth capture.
type Frame struct {
	Color    *image.RGBA
	Depth    *image.Gray16
	Seq      uint64
	Captured time.Time
}

// Device is an RGB-D camera. Frame blocks until the next frame, ctx ends, or
// the device's own timeout elapses (capture.ErrDeviceTimeout).
type Device interface {
	Frame(ctx context.Context) (Frame, error)
	Close() error
}

// DeviceConfig carries the stream profile requested from a driver.
type DeviceConfig struct {
	Width  int
	Height int
	FPS    int
}

// OpenFunc opens a device for a driver.
type OpenFunc func(cfg DeviceConfig) (Device, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]OpenFunc{}
)

// Register makes a driver available to Open. Registering a name twice
// replaces the earlier driver.
func Register(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// Drivers lists registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the named driver. Any failure is a *capture.DeviceOpenError.
func Open(driver string, cfg DeviceConfig) (Device, error) {
	driversMu.RLock()
	open, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, &capture.DeviceOpenError{Device: DeviceName, Driver: driver, Err: fmt.Errorf("unknown driver (available: %v)", Drivers())}
	}
	dev, err := open(cfg)
	if err != nil {
		return nil, &capture.DeviceOpenError{Device: DeviceName, Driver: driver, Err: err}
	}
	return dev, nil
}
