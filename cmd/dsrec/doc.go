// Package main hosts the dsrec CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the recorder in the foreground and
// translates every other terminal invocation into IPC calls against it:
// session control, identity stepping, catalog listing and preview snapshots.
// It centralizes configuration resolution and socket discovery so subcommands
// can focus on output instead of wiring.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
