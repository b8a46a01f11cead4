// Package controller owns the recording session state machine.
//
// The Controller holds the session identity and the Idle/Recording state,
// fans every transition out to the registered capture callbacks, tells the UI
// boundary about it and, on the master node, broadcasts it to subordinates.
// Subordinates run a listener that replays the master's broadcasts through the
// same transitions. All mutations are serialized so UI, IPC and network
// goroutines never race on session state.
package controller
