//go:build linux

package netsync

import (
	"encoding/binary"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func serverSocketControl(_, _ string, raw syscall.RawConn) error {
	return setSockopts(raw, unix.SO_REUSEADDR, unix.SO_BROADCAST)
}

func clientSocketControl(_, _ string, raw syscall.RawConn) error {
	return setSockopts(raw, unix.SO_REUSEADDR, unix.SO_TIMESTAMPNS)
}

func setSockopts(raw syscall.RawConn, opts ...int) error {
	var sockErr error
	err := raw.Control(func(fd uintptr) {
		for _, opt := range opts {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1); sockErr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// receiveTimestamp extracts SCM_TIMESTAMPNS from ancillary data.
func receiveTimestamp(oob []byte) time.Time {
	if len(oob) == 0 {
		return time.Time{}
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return time.Time{}
	}
	for _, msg := range msgs {
		if msg.Header.Level != unix.SOL_SOCKET || msg.Header.Type != unix.SCM_TIMESTAMPNS {
			continue
		}
		if len(msg.Data) < 16 {
			continue
		}
		sec := int64(binary.NativeEndian.Uint64(msg.Data[0:8]))
		nsec := int64(binary.NativeEndian.Uint64(msg.Data[8:16]))
		return time.Unix(sec, nsec)
	}
	return time.Time{}
}
