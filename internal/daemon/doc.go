// Package daemon coordinates the long-running recorder process.
//
// It wires configuration, the session controller, the sync channel, both
// sensor readers, the write coordinator, the catalog and the hotplug watcher
// into a single lifecycle with flock-based locking to prevent multiple
// instances on one machine. Startup and shutdown follow a fixed order so a
// sensor that fails to open leaves nothing running behind it, and a session
// still recording at shutdown is flushed to disk under the failsafe identity.
//
// Keep orchestration here: capture, sync and persistence logic belong in
// their own packages while the daemon focuses on startup, shutdown and the
// command surface exposed over IPC.
package daemon
