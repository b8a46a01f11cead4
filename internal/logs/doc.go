// Package logs reads the recorder's log files for `dsrec logs`.
//
// Last returns the tail of a file with bounded memory and Follow polls for
// appended lines, restarting when a new daemon run replaces the current log
// pointer.
package logs
