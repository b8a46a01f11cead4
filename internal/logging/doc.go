// Package logging assembles structured slog loggers and formatting helpers used
// across the recorder.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so capture code can tag log
// lines with the active session identity (action, person, shot) and a
// per-run identifier. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// records with the same shape as the rest of the system.
package logging
