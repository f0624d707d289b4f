// Package monitoring holds the process-wide diagnostic loggers used by the
// posture pipeline, the result store and the HTTP server.
package monitoring

import (
	"fmt"
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug toggles Debugf output. Per-frame detector logs are only emitted
// when debug is on.
func SetDebug(on bool) { debug.Store(on) }

// DebugEnabled reports whether Debugf currently writes anything.
func DebugEnabled() bool { return debug.Load() }

// Debugf logs through Logf when debug output is enabled.
func Debugf(format string, v ...interface{}) {
	if !debug.Load() {
		return
	}
	Logf("[debug] "+format, v...)
}

// Prefixed returns a logger that prepends "[name] " to every message, in the
// style of the component prefixes used across the server logs.
func Prefixed(name string) func(format string, v ...interface{}) {
	prefix := fmt.Sprintf("[%s] ", name)
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
