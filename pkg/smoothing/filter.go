// Package smoothing holds per-joint exponential moving averages.
package smoothing

import (
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
)

// DefaultAlpha weights each new reading at 20%.
const DefaultAlpha = 0.2

// warnInterval bounds how often non-finite samples are logged at warn level.
const warnInterval = 5 * time.Second

// Filter keeps the last smoothed value per joint. It is not safe for
// concurrent use; the frame driver is its only writer.
type Filter struct {
	alpha    float64
	defaults map[string]float64
	values   map[string]float64

	logger    *slog.Logger
	nonFinite uint64
	lastWarn  time.Time
}

// New creates a filter. An alpha outside (0, 1] selects DefaultAlpha.
// defaults seed NaN fallbacks and Reset.
func New(alpha float64, defaults map[string]float64) *Filter {
	if alpha <= 0 || alpha > 1 || math.IsNaN(alpha) {
		alpha = DefaultAlpha
	}
	f := &Filter{
		alpha:    alpha,
		defaults: make(map[string]float64, len(defaults)),
		values:   make(map[string]float64),
		logger:   log.Component("smoothing"),
	}
	for k, v := range defaults {
		f.defaults[k] = v
	}
	return f
}

// Alpha returns the configured smoothing factor.
func (f *Filter) Alpha() float64 {
	return f.alpha
}

// Smooth folds raw into the joint's average using the configured alpha.
func (f *Filter) Smooth(name string, raw float64) float64 {
	return f.SmoothWith(name, raw, f.alpha)
}

// SmoothWith folds raw into the joint's average using alpha.
// The first sample seeds the average. A NaN or infinite sample leaves memory
// untouched and yields the previous value, or the joint default when there
// is none.
func (f *Filter) SmoothWith(name string, raw, alpha float64) float64 {
	prev, seen := f.values[name]

	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		f.sampleIgnored(name, raw)
		if seen {
			return prev
		}
		return f.defaults[name]
	}

	if !seen {
		f.values[name] = raw
		return raw
	}

	v := prev*(1-alpha) + raw*alpha
	f.values[name] = v
	return v
}

// sampleIgnored logs a non-finite sample: every one at debug level, and a
// warning with the running count at most once per warnInterval.
func (f *Filter) sampleIgnored(name string, raw float64) {
	f.nonFinite++
	f.logger.Debug("non-finite sample ignored", "joint", name, "raw", raw)
	if f.lastWarn.IsZero() || time.Since(f.lastWarn) >= warnInterval {
		f.logger.Warn("ignoring non-finite joint samples", "joint", name, "total", f.nonFinite)
		f.lastWarn = time.Now()
	}
}

// NonFinite returns how many NaN or infinite samples were ignored.
func (f *Filter) NonFinite() uint64 {
	return f.nonFinite
}

// Seed overwrites the joint's memory.
func (f *Filter) Seed(name string, v float64) {
	f.values[name] = v
}

// Value returns the joint's last smoothed value.
func (f *Filter) Value(name string) (float64, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Reset clears memory and reseeds it from defaults. A nil map reseeds
// from the defaults given to New.
func (f *Filter) Reset(defaults map[string]float64) {
	if defaults == nil {
		defaults = f.defaults
	}
	clear(f.values)
	for k, v := range defaults {
		f.values[k] = v
	}
}
