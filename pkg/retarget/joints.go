package retarget

import (
	"strings"

	"github.com/teslashibe/go-mimic/pkg/landmark"
)

// Torso and head joints.
const (
	AbsX  = "abs_x"
	AbsY  = "abs_y"
	AbsZ  = "abs_z"
	HeadZ = "head_z"
	HeadY = "head_y"
)

// Per-side joint suffixes, prefixed with "l_" or "r_".
const (
	HipY      = "hip_y"
	KneeY     = "knee_y"
	AnkleY    = "ankle_y"
	ShoulderX = "shoulder_x"
	ShoulderY = "shoulder_y"
	ArmZ      = "arm_z"
	ElbowY    = "elbow_y"
)

// Side selects a limb.
type Side int

const (
	Left Side = iota
	Right
)

// ParseSide accepts "left"/"l" and "right"/"r".
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, true
	case "right", "r":
		return Right, true
	}
	return Left, false
}

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Sign mirrors angles between sides: +1 left, -1 right.
func (s Side) Sign() float64 {
	if s == Right {
		return -1
	}
	return 1
}

// Joint returns the side's joint name for suffix, e.g. "l_knee_y".
func (s Side) Joint(suffix string) string {
	if s == Right {
		return "r_" + suffix
	}
	return "l_" + suffix
}

type limb struct {
	shoulder, elbow, wrist landmark.Index
	hip, knee, ankle       landmark.Index
}

func (s Side) landmarks() limb {
	if s == Right {
		return limb{
			landmark.RightShoulder, landmark.RightElbow, landmark.RightWrist,
			landmark.RightHip, landmark.RightKnee, landmark.RightAnkle,
		}
	}
	return limb{
		landmark.LeftShoulder, landmark.LeftElbow, landmark.LeftWrist,
		landmark.LeftHip, landmark.LeftKnee, landmark.LeftAnkle,
	}
}

// ControlledJoints lists every joint the engine drives, in output order.
func ControlledJoints(legSides []Side) []string {
	names := []string{AbsX, AbsY, AbsZ, HeadZ, HeadY}
	for _, side := range legSides {
		names = append(names, side.Joint(HipY), side.Joint(KneeY), side.Joint(AnkleY))
	}
	for _, side := range []Side{Left, Right} {
		names = append(names, side.Joint(ShoulderX), side.Joint(ShoulderY), side.Joint(ArmZ), side.Joint(ElbowY))
	}
	return names
}
