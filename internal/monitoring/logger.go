// Package monitoring holds the package-level diagnostic loggers used by the
// waveform decoder, scanner and exporters.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf carries per-record diagnostics such as ignored waveform pointers
// and dropped deferred returns. It is muted until SetVerbose(true).
var Debugf func(format string, v ...interface{}) = noop

var verbose bool

func noop(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
// Debugf follows the new logger while verbose output is enabled.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = noop
	} else {
		Logf = f
	}
	SetVerbose(verbose)
}

// SetVerbose routes Debugf through Logf when on, and mutes it otherwise.
func SetVerbose(on bool) {
	verbose = on
	if !on {
		Debugf = noop
		return
	}
	logf := Logf
	Debugf = func(format string, v ...interface{}) { logf(format, v...) }
}

// Verbose reports whether Debugf output is enabled.
func Verbose() bool { return verbose }
