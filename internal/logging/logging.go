// Package logging is a thin WARN:/ERROR: prefixed wrapper around the
// standard library's log package, generalizing the bare
// log.Printf/log.Fatalf calls this codebase used to make directly
// into the two severities the harness's diagnostics require.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger writes free-form diagnostic lines to its underlying writer,
// prefixed WARN: or ERROR: per the harness's error taxonomy.
type Logger struct {
	l *log.Logger
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{l: log.New(w, "", log.LstdFlags)}
}

// Default writes to standard error, the harness's diagnostic stream.
func Default() *Logger {
	return New(os.Stderr)
}

// Warn logs a recoverable condition: per-connection I/O error, idle
// timeout, protocol violation. The process continues.
func (g *Logger) Warn(format string, args ...interface{}) {
	g.l.Printf("WARN: "+format, args...)
}

// Error logs a condition that does not on its own terminate the
// process but is more severe than a recoverable warning.
func (g *Logger) Error(format string, args ...interface{}) {
	g.l.Printf("ERROR: "+format, args...)
}

// Fatal logs and terminates the process immediately. Used for fatal
// client runtime errors and startup failures, where the harness's
// steady-state measurement is meaningless once I/O has failed.
func (g *Logger) Fatal(format string, args ...interface{}) {
	g.l.Fatalf("ERROR: "+format, args...)
}
