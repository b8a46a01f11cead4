// Package ipc exposes the recorder over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between daemon and catalog models and lightweight wire representations. The
// server depends on the Recorder interface rather than the daemon so the
// protocol can be exercised without sensors.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
