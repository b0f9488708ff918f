// Package retarget maps human pose landmarks onto robot joint angles.
//
// Region functions (Torso, Head, Leg, Arm) are pure apart from the arm
// length history they append to. Engine glues them to the visibility
// classifier, the smoothing filter and joint limits.
package retarget

import (
	"math"

	"github.com/teslashibe/go-mimic/pkg/debug"
	"github.com/teslashibe/go-mimic/pkg/landmark"
	"github.com/teslashibe/go-mimic/pkg/visibility"
)

// Command is one joint target.
type Command struct {
	Joint string  `json:"joint"`
	Value float64 `json:"value"`
}

// Frame is the outcome of one landmark set.
type Frame struct {
	State    visibility.State  `json:"state"`
	Regions  visibility.Region `json:"regions"`
	Commands []Command         `json:"commands"`
}

// Value returns the command value for joint.
func (f Frame) Value(joint string) (float64, bool) {
	for _, c := range f.Commands {
		if c.Joint == joint {
			return c.Value, true
		}
	}
	return 0, false
}

// LimitSource reports a joint's range. *kinematics.Tree implements it.
type LimitSource interface {
	Limits(name string) (lower, upper float64, ok bool)
}

// Engine turns landmark sets into clamped, smoothed joint commands.
// It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	ctx      *Context
	limits   LimitSource
	legSides []Side
	joints   []string
}

// NewEngine creates an engine. limits may be nil.
func NewEngine(cfg Config, limits LimitSource) *Engine {
	sides := cfg.Leg.LegSides()
	return &Engine{
		cfg:      cfg,
		ctx:      NewContext(cfg),
		limits:   limits,
		legSides: sides,
		joints:   ControlledJoints(sides),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Context exposes the cross-frame state.
func (e *Engine) Context() *Context {
	return e.ctx
}

// Joints lists the controlled joints in command order.
func (e *Engine) Joints() []string {
	return append([]string(nil), e.joints...)
}

// SetLimits swaps the limit source, e.g. after reloading the description.
func (e *Engine) SetLimits(limits LimitSource) {
	e.limits = limits
}

// Default returns the joint's default pose value, clamped.
func (e *Engine) Default(joint string) float64 {
	return e.clamp(joint, e.cfg.Defaults[joint])
}

// Process classifies s, runs the allowed regions and emits one command per
// controlled joint. Joints without a fresh value fall back to their default.
// The None state also reseeds the smoothing memory to the default pose.
func (e *Engine) Process(s *landmark.Set) Frame {
	state := visibility.Classify(s, e.cfg.Visibility)
	if state == visibility.None {
		return e.Reset()
	}

	regions := visibility.Regions(state)
	raw := e.raw(s, regions)
	debug.FrameLog("retarget: raw values", "state", string(state), "regions", regions.String(), "raw", raw)

	frame := Frame{State: state, Regions: regions, Commands: make([]Command, 0, len(e.joints))}
	for _, name := range e.joints {
		v, ok := raw[name]
		if ok {
			v = e.ctx.Smoother.Smooth(name, v)
		} else {
			v = e.cfg.Defaults[name]
		}
		frame.Commands = append(frame.Commands, Command{Joint: name, Value: e.clamp(name, v)})
	}
	return frame
}

// Reset returns the default pose and reseeds the context to it.
func (e *Engine) Reset() Frame {
	frame := Frame{State: visibility.None, Regions: visibility.NoRegions, Commands: make([]Command, 0, len(e.joints))}
	pose := make(map[string]float64, len(e.joints))
	for _, name := range e.joints {
		v := e.Default(name)
		pose[name] = v
		frame.Commands = append(frame.Commands, Command{Joint: name, Value: v})
	}
	e.ctx.Reset(pose)
	return frame
}

func (e *Engine) raw(s *landmark.Set, regions visibility.Region) Values {
	raw := make(Values)
	merge := func(v Values, ok bool) {
		if !ok {
			return
		}
		for k, x := range v {
			raw[k] = x
		}
	}

	if regions.Has(visibility.Torso) {
		merge(Torso(s, e.cfg.Torso))
	}
	if regions.Has(visibility.Head) {
		merge(Head(s, e.cfg.Head))
	}
	if regions.Has(visibility.Legs) {
		for _, side := range e.legSides {
			merge(Leg(s, side, e.cfg.Leg))
		}
	}
	if regions.Has(visibility.Arms) {
		for _, side := range []Side{Left, Right} {
			merge(Arm(s, side, e.cfg.Arm, e.ctx.History(side)))
		}
	}
	return raw
}

// clamp applies the tree's limits, then configured limits. Joints known to
// neither pass through.
func (e *Engine) clamp(joint string, v float64) float64 {
	if math.IsNaN(v) {
		v = e.cfg.Defaults[joint]
	}
	if e.limits != nil {
		if lo, hi, ok := e.limits.Limits(joint); ok {
			return clamp(v, lo, hi)
		}
	}
	if r, ok := e.cfg.Limits[joint]; ok {
		return clamp(v, r.Min, r.Max)
	}
	return v
}
