// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-mimic/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether verbose per-frame logs are shown (visibility state,
// raw region values, smoothing fallbacks).
// Use --debug-frames to enable these very verbose logs
var Frames bool

// Log emits a debug message only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// FrameLog emits a debug message only if per-frame debug mode is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Debug(msg, args...)
	}
}
