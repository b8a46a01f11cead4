// Package netsync carries session-control messages between one master node
// and any number of subordinate nodes over UDP broadcast.
//
// Messages are small JSON objects:
//
//	{"t": 1712345678.123, "ctrl": "record", "aid": 3, "pid": 7, "sid": 1}
//
// The master owns a Server that caches the current identity and broadcasts
// update, record, stop and cancel messages. Subordinates own a Client that pins
// the host of the first sender it hears from and ignores other hosts; a master
// restarted on the same host is followed on its new source port. Receive timestamps
// from the kernel are reported alongside the local wall clock so operators can
// judge cross-machine skew; no alignment is attempted.
package netsync
