package servo

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// JointCalibration maps one joint's radian range onto a servo's raw
// position range.
type JointCalibration struct {
	ID       int     `mapstructure:"id" json:"id"`
	Lower    float64 `mapstructure:"lower" json:"lower"` // Radians mapped to RangeMin
	Upper    float64 `mapstructure:"upper" json:"upper"` // Radians mapped to RangeMax
	RangeMin int     `mapstructure:"range_min" json:"range_min"`
	RangeMax int     `mapstructure:"range_max" json:"range_max"`
	Invert   bool    `mapstructure:"invert" json:"invert"`
}

// Raw converts an angle to a raw servo position, clamped to the calibrated
// range.
func (c JointCalibration) Raw(rad float64) int {
	span := c.Upper - c.Lower
	if span == 0 || math.IsNaN(rad) {
		return (c.RangeMin + c.RangeMax) / 2
	}
	t := (rad - c.Lower) / span
	t = math.Max(0, math.Min(1, t))
	if c.Invert {
		t = 1 - t
	}
	return c.RangeMin + int(math.Round(t*float64(c.RangeMax-c.RangeMin)))
}

// Angle converts a raw servo position back to radians.
func (c JointCalibration) Angle(raw int) float64 {
	size := float64(c.RangeMax - c.RangeMin)
	if size == 0 {
		return (c.Lower + c.Upper) / 2
	}
	t := float64(raw-c.RangeMin) / size
	if c.Invert {
		t = 1 - t
	}
	return c.Lower + t*(c.Upper-c.Lower)
}

// Calibration holds calibration data keyed by joint name.
type Calibration map[string]JointCalibration

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}
	var cal Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}
	return cal, cal.Validate()
}

// Validate rejects duplicate servo IDs.
func (c Calibration) Validate() error {
	seen := make(map[int]string, len(c))
	for _, name := range c.Joints() {
		id := c[name].ID
		if other, ok := seen[id]; ok {
			return fmt.Errorf("servo: id %d used by both %s and %s", id, other, name)
		}
		seen[id] = name
	}
	return nil
}

// Joints returns the calibrated joint names sorted by servo ID.
func (c Calibration) Joints() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c[names[i]].ID < c[names[j]].ID
	})
	return names
}

// IDs returns the servo IDs sorted ascending.
func (c Calibration) IDs() []int {
	ids := make([]int, 0, len(c))
	for _, name := range c.Joints() {
		ids = append(ids, c[name].ID)
	}
	return ids
}
