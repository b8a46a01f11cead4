package capture

import (
	"errors"
	"fmt"
)

// ErrDeviceTimeout reports that a device did not deliver a frame within its
// timeout. Readers log it and retry.
var ErrDeviceTimeout = errors.New("device frame timeout")

// DeviceOpenError reports that a sensor failed to initialize. It is fatal at
// startup.
type DeviceOpenError struct {
	Device string
	Driver string
	Err    error
}

func (e *DeviceOpenError) Error() string {
	if e.Driver != "" {
		return fmt.Sprintf("open %s device (driver %q): %v", e.Device, e.Driver, e.Err)
	}
	return fmt.Sprintf("open %s device: %v", e.Device, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

// SaveError reports a failed write of one modality.
type SaveError struct {
	Modality string
	Dir      string
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s to %s: %v", e.Modality, e.Dir, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
