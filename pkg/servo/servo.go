// Package servo drives Feetech STS bus servos from joint commands.
package servo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
)

// Group is the part of a feetech servo group the output needs.
// *feetech.ServoGroup implements it.
type Group interface {
	SetPositions(ctx context.Context, positions feetech.PositionMap) error
	EnableAll(ctx context.Context) error
	DisableAll(ctx context.Context) error
}

// Config configures the servo output.
type Config struct {
	Port        string      `mapstructure:"port" json:"port"` // Empty disables servo output
	BaudRate    int         `mapstructure:"baud_rate" json:"baud_rate"`
	Calibration Calibration `mapstructure:"calibration" json:"calibration"`
	// CalibrationFile is loaded when Calibration is empty
	CalibrationFile string `mapstructure:"calibration_file" json:"calibration_file"`
}

// DefaultConfig returns a disabled configuration at the STS default baud.
func DefaultConfig() Config {
	return Config{BaudRate: 1_000_000}
}

// Output is a pipeline.FrameSink that writes calibrated positions to a
// servo group. Only servos whose raw target changed are written.
type Output struct {
	group  Group
	cal    Calibration
	closer func() error
	logger *slog.Logger

	mu      sync.Mutex
	lastRaw feetech.PositionMap
	writes  uint64
	enabled bool
}

// NewOutput wraps an already-open group.
func NewOutput(group Group, cal Calibration) *Output {
	return &Output{
		group:   group,
		cal:     cal,
		logger:  log.Component("servo"),
		lastRaw: make(feetech.PositionMap),
	}
}

// Open opens the serial bus and builds a group from the calibrated IDs.
func Open(cfg Config) (*Output, error) {
	cal := cfg.Calibration
	if len(cal) == 0 && cfg.CalibrationFile != "" {
		var err error
		if cal, err = LoadCalibration(cfg.CalibrationFile); err != nil {
			return nil, err
		}
	}
	if len(cal) == 0 {
		return nil, errors.New("servo: no calibration")
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultConfig().BaudRate
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	out := NewOutput(feetech.NewServoGroupByIDs(bus, cal.IDs()...), cal)
	out.closer = bus.Close
	out.logger.Info("servo bus opened", "port", cfg.Port, "servos", len(cal))
	return out, nil
}

// Enable turns torque on.
func (o *Output) Enable(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.group.EnableAll(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	o.enabled = true
	return nil
}

// Disable turns torque off.
func (o *Output) Disable(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.group.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	o.enabled = false
	return nil
}

// Positions converts commands to raw positions for calibrated joints.
func (o *Output) Positions(res pipeline.Result) feetech.PositionMap {
	out := make(feetech.PositionMap, len(o.cal))
	for _, cmd := range res.Frame.Commands {
		c, ok := o.cal[cmd.Joint]
		if !ok {
			continue
		}
		out[c.ID] = c.Raw(cmd.Value)
	}
	return out
}

// HandleFrame implements pipeline.FrameSink.
func (o *Output) HandleFrame(ctx context.Context, res pipeline.Result) error {
	target := o.Positions(res)

	o.mu.Lock()
	defer o.mu.Unlock()

	changed := make(feetech.PositionMap, len(target))
	for id, raw := range target {
		if prev, ok := o.lastRaw[id]; !ok || prev != raw {
			changed[id] = raw
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err := o.group.SetPositions(ctx, changed); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	for id, raw := range changed {
		o.lastRaw[id] = raw
	}
	o.writes++
	return nil
}

// Writes returns the number of bus writes issued.
func (o *Output) Writes() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.writes
}

// Close disables torque if it was enabled and closes the bus.
func (o *Output) Close(ctx context.Context) error {
	var errs []error
	o.mu.Lock()
	if o.enabled {
		if err := o.group.DisableAll(ctx); err != nil {
			errs = append(errs, err)
		}
		o.enabled = false
	}
	o.mu.Unlock()
	if o.closer != nil {
		if err := o.closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
