package retarget

import (
	"math"

	"github.com/teslashibe/go-mimic/pkg/smoothing"
	"github.com/teslashibe/go-mimic/pkg/visibility"
)

// Range is a joint's allowed interval in radians (or meters for prismatic joints).
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Config holds every tunable of the retargeting engine.
// The numeric defaults are empirical and expected to be recalibrated
// per camera and body scale.
type Config struct {
	Alpha      float64               `mapstructure:"alpha" json:"alpha"` // Smoothing factor (0-1, higher = more new data)
	Defaults   map[string]float64    `mapstructure:"defaults" json:"defaults"`
	Limits     map[string]Range      `mapstructure:"limits" json:"limits"` // Used when the tree has no such joint
	Visibility visibility.Thresholds `mapstructure:"visibility" json:"visibility"`

	Torso TorsoConfig `mapstructure:"torso" json:"torso"`
	Head  HeadConfig  `mapstructure:"head" json:"head"`
	Leg   LegConfig   `mapstructure:"leg" json:"leg"`
	Arm   ArmConfig   `mapstructure:"arm" json:"arm"`
}

// TorsoConfig tunes abs_x, abs_y and abs_z.
type TorsoConfig struct {
	SideBendScale    float64 `mapstructure:"side_bend_scale" json:"side_bend_scale"`
	SideBendDeadZone float64 `mapstructure:"side_bend_dead_zone" json:"side_bend_dead_zone"` // Applied to the shoulder slope
	LeanWindow       float64 `mapstructure:"lean_window" json:"lean_window"`                 // Human lean mapped onto the joint range (±radians)
	AbsYMin          float64 `mapstructure:"abs_y_min" json:"abs_y_min"`
	AbsYMax          float64 `mapstructure:"abs_y_max" json:"abs_y_max"`
	TwistScale       float64 `mapstructure:"twist_scale" json:"twist_scale"`
	TwistDeadZone    float64 `mapstructure:"twist_dead_zone" json:"twist_dead_zone"`
}

// HeadConfig tunes head_z and head_y.
type HeadConfig struct {
	RefShoulderDistance float64 `mapstructure:"ref_shoulder_distance" json:"ref_shoulder_distance"` // Shoulder separation at which the factor is 1
	MinDistanceFactor   float64 `mapstructure:"min_distance_factor" json:"min_distance_factor"`
	MaxDistanceFactor   float64 `mapstructure:"max_distance_factor" json:"max_distance_factor"`
	YawSensitivity      float64 `mapstructure:"yaw_sensitivity" json:"yaw_sensitivity"`
	PitchSensitivity    float64 `mapstructure:"pitch_sensitivity" json:"pitch_sensitivity"`
	PitchNeutral        float64 `mapstructure:"pitch_neutral" json:"pitch_neutral"` // Nose-below-eyes offset treated as level
}

// LegConfig tunes hip_y, knee_y and ankle_y.
type LegConfig struct {
	Sides           []string `mapstructure:"sides" json:"sides"` // "left", "right"
	HipSensitivity  float64  `mapstructure:"hip_sensitivity" json:"hip_sensitivity"`
	KneeStraight    float64  `mapstructure:"knee_straight" json:"knee_straight"`
	KneeBent        float64  `mapstructure:"knee_bent" json:"knee_bent"`
	AnkleRestOffset float64  `mapstructure:"ankle_rest_offset" json:"ankle_rest_offset"`
	AnkleScale      float64  `mapstructure:"ankle_scale" json:"ankle_scale"`
}

// ArmConfig tunes shoulder_x, shoulder_y, arm_z and elbow_y.
type ArmConfig struct {
	HistorySize             int     `mapstructure:"history_size" json:"history_size"`
	MinHistory              int     `mapstructure:"min_history" json:"min_history"`
	ForeshorteningThreshold float64 `mapstructure:"foreshortening_threshold" json:"foreshortening_threshold"`
	HorizontalWindow        float64 `mapstructure:"horizontal_window" json:"horizontal_window"` // Max upper-arm deviation from horizontal for hands-forward
	ShoulderXForward        float64 `mapstructure:"shoulder_x_forward" json:"shoulder_x_forward"`
	ShoulderXSideways       float64 `mapstructure:"shoulder_x_sideways" json:"shoulder_x_sideways"`
	ShoulderXVertical       float64 `mapstructure:"shoulder_x_vertical" json:"shoulder_x_vertical"`
	ShoulderYScale          float64 `mapstructure:"shoulder_y_scale" json:"shoulder_y_scale"`
	ElbowStraight           float64 `mapstructure:"elbow_straight" json:"elbow_straight"`
	ElbowBent               float64 `mapstructure:"elbow_bent" json:"elbow_bent"`
}

// DefaultConfig returns the tuned defaults for a Poppy-style humanoid.
func DefaultConfig() Config {
	defaults := make(map[string]float64)
	for _, name := range ControlledJoints([]Side{Left}) {
		defaults[name] = 0
	}

	return Config{
		Alpha:      smoothing.DefaultAlpha,
		Defaults:   defaults,
		Limits:     map[string]Range{},
		Visibility: visibility.DefaultThresholds(),

		Torso: TorsoConfig{
			SideBendScale:    1.0,
			SideBendDeadZone: 0.05,
			LeanWindow:       0.35,
			AbsYMin:          -0.87,
			AbsYMax:          0.21,
			TwistScale:       2.0,
			TwistDeadZone:    0.05,
		},
		Head: HeadConfig{
			RefShoulderDistance: 0.25,
			MinDistanceFactor:   0.5,
			MaxDistanceFactor:   2.0,
			YawSensitivity:      4.0,
			PitchSensitivity:    4.0,
			PitchNeutral:        0,
		},
		Leg: LegConfig{
			Sides:           []string{"left"},
			HipSensitivity:  2.0,
			KneeStraight:    0,
			KneeBent:        2.3,
			AnkleRestOffset: 0.2,
			AnkleScale:      2.0,
		},
		Arm: ArmConfig{
			HistorySize:             10,
			MinHistory:              5,
			ForeshorteningThreshold: 0.75,
			HorizontalWindow:        math.Pi / 3,
			ShoulderXForward:        0,
			ShoulderXSideways:       1.4,
			ShoulderXVertical:       0.1,
			ShoulderYScale:          3.0,
			ElbowStraight:           0,
			ElbowBent:               2.5,
		},
	}
}

// LegSides parses Leg.Sides, ignoring unknown names.
func (c LegConfig) LegSides() []Side {
	var sides []Side
	for _, s := range c.Sides {
		if side, ok := ParseSide(s); ok {
			sides = append(sides, side)
		}
	}
	return sides
}
