package retarget

import "github.com/teslashibe/go-mimic/pkg/smoothing"

// Context is the per-pipeline state carried across frames.
type Context struct {
	Smoother *smoothing.Filter
	Arms     [2]*ArmHistory // Indexed by Side
}

// NewContext creates a fresh context for cfg.
func NewContext(cfg Config) *Context {
	return &Context{
		Smoother: smoothing.New(cfg.Alpha, cfg.Defaults),
		Arms: [2]*ArmHistory{
			NewArmHistory(cfg.Arm.HistorySize),
			NewArmHistory(cfg.Arm.HistorySize),
		},
	}
}

// History returns the side's arm-length history.
func (c *Context) History(side Side) *ArmHistory {
	return c.Arms[side]
}

// Reset reseeds smoothing memory from pose and clears the arm histories.
func (c *Context) Reset(pose map[string]float64) {
	c.Smoother.Reset(pose)
	for _, h := range c.Arms {
		h.Reset()
	}
}
