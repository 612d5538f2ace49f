// Package monitoring holds the shared diagnostic logger for the proximity
// pipeline. Protocol-level packages log through Logf so tests can mute or
// capture output without touching the standard logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to the standard
// logger and may be swapped out with SetLogger.
var Logf = defaultLogf

func defaultLogf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, silencing the pipeline's diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
}

// Reset restores the default standard-library logger.
func Reset() {
	Logf = defaultLogf
}
