package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"dsrec/internal/capture"
	"dsrec/internal/reader/event"
	"dsrec/internal/reader/rgbd"
)

// Exit statuses for sensors that fail to open at startup.
const (
	exitFailure   = 1
	exitRGBDOpen  = 2
	exitEventOpen = 3
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var openErr *capture.DeviceOpenError
	if errors.As(err, &openErr) {
		switch openErr.Device {
		case rgbd.DeviceName:
			return exitRGBDOpen
		case event.DeviceName:
			return exitEventOpen
		}
	}
	return exitFailure
}
