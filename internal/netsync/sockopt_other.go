//go:build !linux

package netsync

import (
	"syscall"
	"time"
)

func serverSocketControl(_, _ string, _ syscall.RawConn) error { return nil }

func clientSocketControl(_, _ string, _ syscall.RawConn) error { return nil }

func receiveTimestamp([]byte) time.Time { return time.Time{} }
