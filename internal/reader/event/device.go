package event

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"dsrec/internal/capture"
)

// Device is an event camera. Recording streams raw events straight to a file
// owned by the driver until StopRecording returns.
type Device interface {
	StartRecording(path string) error
	StopRecording() error
	// Preview returns the latest denoised binary event picture.
	Preview() (*image.Gray, error)
	Close() error
}

// DeviceConfig carries sensor settings applied when the device opens.
type DeviceConfig struct {
	Width     int
	Height    int
	Threshold int
	FPNFile   string
}

// OpenFunc opens a device for a driver.
type OpenFunc func(cfg DeviceConfig) (Device, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]OpenFunc{}
)

// Register makes a driver available to Open.
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
