// Package pipeline drives the per-frame detect → retarget → apply cycle.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/teslashibe/go-mimic/pkg/landmark"
	"github.com/teslashibe/go-mimic/pkg/overlay"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

// ErrSourceEnded is returned by Step once the bound source has finished.
var ErrSourceEnded = errors.New("pipeline: source ended")

// SourceState is the playback state of a landmark source.
type SourceState int

const (
	Playing SourceState = iota
	Paused
	Ended
)

func (s SourceState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Source is the media the landmarks come from.
type Source interface {
	State() SourceState
	CurrentTime() time.Duration
}

// Detector produces the landmarks for the source's current frame.
// A nil set means no subject.
type Detector interface {
	Detect(ctx context.Context) (*landmark.Set, error)
}

// JointSink receives one call per controlled joint per processed frame.
// *kinematics.Tree implements it.
type JointSink interface {
	UpdateJoint(name string, value float64)
}

// OverlaySink receives the skeleton primitives of each processed frame.
// An empty sequence clears the overlay.
type OverlaySink interface {
	UpdateOverlay(prims iter.Seq[overlay.Primitive])
}

// FrameSink consumes whole frame results: broadcast hubs, remote renderers,
// servo buses and recorders. Errors are logged and never stop the loop.
type FrameSink interface {
	HandleFrame(ctx context.Context, r Result) error
}

// Decision is the outcome of one Step.
type Decision int

const (
	Skip Decision = iota
	Process
)

func (d Decision) String() string {
	if d == Process {
		return "process"
	}
	return "skip"
}

// Result describes one processed frame.
type Result struct {
	Seq       uint64         `json:"seq"`
	Source    string         `json:"source"`
	MediaTime time.Duration  `json:"media_time"`
	At        time.Time      `json:"at"`
	Frame     retarget.Frame `json:"frame"`
	Landmarks *landmark.Set  `json:"-"`
	Failed    bool           `json:"failed"` // Detection failed; Frame is the default pose
}

// Config controls frame scheduling.
type Config struct {
	FrameInterval time.Duration `mapstructure:"frame_interval" json:"frame_interval"`
}

// DefaultConfig polls at roughly 30 frames per second.
func DefaultConfig() Config {
	return Config{FrameInterval: 33 * time.Millisecond}
}
