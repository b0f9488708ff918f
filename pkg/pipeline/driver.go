package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/debug"
	"github.com/teslashibe/go-mimic/pkg/kinematics"
	"github.com/teslashibe/go-mimic/pkg/overlay"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

// sinkErrorInterval bounds how often one sink's failures are logged.
const sinkErrorInterval = 5 * time.Second

// Driver owns the retargeting engine and is its only writer. Step and Run
// must be called from a single goroutine; the other methods are safe for
// concurrent use.
type Driver struct {
	config Config
	engine *retarget.Engine
	logger *slog.Logger

	// Source binding, replaced by SwitchSource.
	bindMu       sync.Mutex
	source       Source
	detector     Detector
	sourceID     string
	pendingReset bool

	// Driver-goroutine state.
	lastTime   time.Duration
	hasLast    bool
	paused     bool // Default pose already published for the current pause
	seq        uint64
	jointSinks []JointSink
	frameSinks []FrameSink
	overlay    OverlaySink
	sinkErrors map[int]*sinkErrorLog

	// Guards tree and last.
	mu   sync.RWMutex
	tree *kinematics.Tree
	last Result
}

type sinkErrorLog struct {
	count    uint64
	lastTime time.Time
}

// NewDriver creates a driver. tree may be nil when no description is loaded.
func NewDriver(config Config, engine *retarget.Engine, tree *kinematics.Tree) *Driver {
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultConfig().FrameInterval
	}
	d := &Driver{
		config:     config,
		engine:     engine,
		logger:     log.Component("pipeline"),
		tree:       tree,
		sinkErrors: make(map[int]*sinkErrorLog),
	}
	if tree != nil {
		engine.SetLimits(tree)
	}
	return d
}

// AddJointSink registers an extra per-joint consumer. Call before Run.
func (d *Driver) AddJointSink(s JointSink) {
	d.jointSinks = append(d.jointSinks, s)
}

// AddFrameSink registers a whole-frame consumer. Call before Run.
func (d *Driver) AddFrameSink(s FrameSink) {
	d.frameSinks = append(d.frameSinks, s)
}

// SetOverlaySink sets the overlay consumer. Call before Run.
func (d *Driver) SetOverlaySink(s OverlaySink) {
	d.overlay = s
}

// SwitchSource binds a new source and detector. The core is reset to the
// default pose before the next frame. A nil source detaches.
func (d *Driver) SwitchSource(id string, src Source, det Detector) {
	d.bindMu.Lock()
	d.source = src
	d.detector = det
	d.sourceID = id
	d.pendingReset = true
	d.bindMu.Unlock()

	d.logger.Info("source switched", "source", id)
}

// SourceID returns the bound source's id, or "" when detached.
func (d *Driver) SourceID() string {
	d.bindMu.Lock()
	defer d.bindMu.Unlock()
	return d.sourceID
}

func (d *Driver) binding() (Source, Detector, string, bool) {
	d.bindMu.Lock()
	defer d.bindMu.Unlock()
	reset := d.pendingReset
	d.pendingReset = false
	return d.source, d.detector, d.sourceID, reset
}

// Step runs at most one detection cycle. It skips when no source is bound,
// the source is paused, or its media time has not advanced since the last
// processed frame. Entering a pause publishes the default pose once. ErrSourceEnded is returned once the source has ended;
// the caller decides whether to detach it.
func (d *Driver) Step(ctx context.Context) (Decision, error) {
	src, det, id, reset := d.binding()
	if reset {
		d.hasLast, d.paused = false, false
		d.resetPose(ctx, id)
	}
	if src == nil || det == nil {
		return Skip, nil
	}

	switch src.State() {
	case Ended:
		return Skip, ErrSourceEnded
	case Paused:
		if !d.paused {
			d.paused, d.hasLast = true, false
			d.logger.Info("source paused, resetting to default pose", "source", id)
			d.resetPose(ctx, id)
		}
		return Skip, nil
	}
	d.paused = false

	now := src.CurrentTime()
	if d.hasLast && now <= d.lastTime {
		return Skip, nil
	}
	d.lastTime, d.hasLast = now, true

	set, err := det.Detect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Skip, ctx.Err()
		}
		d.logger.Warn("detection failed, resetting to default pose", "source", id, "error", err)
		d.publish(ctx, Result{Source: id, MediaTime: now, Frame: d.engine.Reset(), Failed: true}, overlay.Primitives(nil))
		return Process, nil
	}

	frame := d.engine.Process(set)
	debug.FrameLog("pipeline: frame processed", "source", id, "media_time", now, "state", string(frame.State))
	d.publish(ctx, Result{Source: id, MediaTime: now, Frame: frame, Landmarks: set}, overlay.Primitives(set))
	return Process, nil
}

// Run steps every frame interval until ctx is cancelled. An ended source is
// detached and the core reset; Run then idles until SwitchSource binds
// another one.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.config.FrameInterval)
	defer ticker.Stop()

	d.logger.Info("frame driver started", "interval", d.config.FrameInterval, "joints", len(d.engine.Joints()))

	for {
		select {
		case <-ctx.Done():
			d.resetPose(context.WithoutCancel(ctx), d.SourceID())
			d.logger.Info("frame driver stopped")
			return ctx.Err()

		case <-ticker.C:
			_, err := d.Step(ctx)
			switch {
			case errors.Is(err, ErrSourceEnded):
				id := d.SourceID()
				d.logger.Info("source ended", "source", id)
				d.detachIf(id)
			case err != nil && ctx.Err() == nil:
				d.logger.Warn("frame step failed", "error", err)
			}
		}
	}
}

// detachIf unbinds the source only if it was not switched in the meantime.
func (d *Driver) detachIf(id string) {
	d.bindMu.Lock()
	defer d.bindMu.Unlock()
	if d.sourceID != id {
		return
	}
	d.source, d.detector, d.sourceID = nil, nil, ""
	d.pendingReset = true
}

func (d *Driver) resetPose(ctx context.Context, id string) {
	d.publish(ctx, Result{Source: id, Frame: d.engine.Reset()}, overlay.Primitives(nil))
}

// publish applies a frame to the tree and every sink.
func (d *Driver) publish(ctx context.Context, r Result, prims iter.Seq[overlay.Primitive]) {
	d.seq++
	r.Seq = d.seq
	r.At = time.Now()

	d.mu.Lock()
	if d.tree != nil {
		for _, c := range r.Frame.Commands {
			d.tree.UpdateJoint(c.Joint, c.Value)
		}
	}
	d.last = r
	d.mu.Unlock()

	for _, s := range d.jointSinks {
		for _, c := range r.Frame.Commands {
			s.UpdateJoint(c.Joint, c.Value)
		}
	}
	if d.overlay != nil {
		d.overlay.UpdateOverlay(prims)
	}
	for i, s := range d.frameSinks {
		if err := s.HandleFrame(ctx, r); err != nil {
			d.sinkFailed(i, s, err)
		}
	}
}

// sinkFailed logs a sink error at most once per sinkErrorInterval.
func (d *Driver) sinkFailed(i int, s FrameSink, err error) {
	e, ok := d.sinkErrors[i]
	if !ok {
		e = &sinkErrorLog{}
		d.sinkErrors[i] = e
	}
	e.count++
	if e.lastTime.IsZero() || time.Since(e.lastTime) > sinkErrorInterval {
		d.logger.Warn("frame sink failed", "sink", fmt.Sprintf("%T", s), "error", err, "total_errors", e.count)
		e.lastTime = time.Now()
	}
}

// Snapshot returns a copy of the last published frame.
func (d *Driver) Snapshot() Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r := d.last
	r.Frame.Commands = slices.Clone(r.Frame.Commands)
	return r
}

// WithTree runs fn while holding the tree lock. fn must not retain the tree.
// It reports false when no tree is loaded.
func (d *Driver) WithTree(fn func(t *kinematics.Tree)) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.tree == nil {
		return false
	}
	fn(d.tree)
	return true
}

// UpdateTree runs fn with exclusive access to the tree, for debug overrides that
// write joint values outside the frame loop.
func (d *Driver) UpdateTree(fn func(t *kinematics.Tree)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tree == nil {
		return false
	}
	fn(d.tree)
	return true
}

// Engine returns the driver's engine. Only the driver goroutine may call
// its mutating methods.
func (d *Driver) Engine() *retarget.Engine {
	return d.engine
}
