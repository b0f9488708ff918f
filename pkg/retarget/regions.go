package retarget

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-mimic/pkg/landmark"
)

// Values maps joint names to raw, unsmoothed angles.
type Values map[string]float64

// Torso derives abs_x (side bend), abs_y (lean) and abs_z (twist).
// ok is false unless both shoulders and both hips are valid.
func Torso(s *landmark.Set, cfg TorsoConfig) (Values, bool) {
	if !s.AllValid(landmark.LeftShoulder, landmark.RightShoulder, landmark.LeftHip, landmark.RightHip) {
		return nil, false
	}
	ls, _ := s.Get(landmark.LeftShoulder)
	rs, _ := s.Get(landmark.RightShoulder)
	lh, _ := s.Get(landmark.LeftHip)
	rh, _ := s.Get(landmark.RightHip)

	// Side bend: shoulder line slope, inverted.
	shoulders := vec2(rs, ls)
	bend := math.NaN()
	if shoulders.X != 0 {
		bend = deadZone(-(shoulders.Y / math.Abs(shoulders.X)), cfg.SideBendDeadZone) * cfg.SideBendScale
	}

	// Lean: spine direction relative to upright (-π/2, image y grows down).
	spine := vec2(landmark.Midpoint(lh, rh), landmark.Midpoint(ls, rs))
	lean := clamp(signedAngle(spine)+math.Pi/2, -cfg.LeanWindow, cfg.LeanWindow)
	var absY float64
	if lean < 0 {
		absY = remap(lean, -cfg.LeanWindow, 0, cfg.AbsYMin, 0)
	} else {
		absY = remap(lean, 0, cfg.LeanWindow, 0, cfg.AbsYMax)
	}

	twist := 0.0
	lz, okL := ls.Depth()
	rz, okR := rs.Depth()
	if okL && okR {
		twist = deadZone(lz-rz, cfg.TwistDeadZone) * cfg.TwistScale
	}

	return Values{AbsX: bend, AbsY: absY, AbsZ: twist}, true
}

// Head derives head_z (yaw) and head_y (pitch) from the nose offset to the
// outer-eye midpoint, normalized by shoulder separation.
func Head(s *landmark.Set, cfg HeadConfig) (Values, bool) {
	if !s.AllValid(
		landmark.Nose, landmark.LeftEyeOuter, landmark.RightEyeOuter,
		landmark.LeftEar, landmark.RightEar,
		landmark.LeftShoulder, landmark.RightShoulder,
	) {
		return nil, false
	}
	nose, _ := s.Get(landmark.Nose)
	le, _ := s.Get(landmark.LeftEyeOuter)
	re, _ := s.Get(landmark.RightEyeOuter)
	ls, _ := s.Get(landmark.LeftShoulder)
	rs, _ := s.Get(landmark.RightShoulder)

	factor := cfg.MaxDistanceFactor
	if d := r3.Norm(vec2(ls, rs)); d > 0 {
		factor = clamp(cfg.RefShoulderDistance/d, cfg.MinDistanceFactor, cfg.MaxDistanceFactor)
	}

	eyes := landmark.Midpoint(le, re)
	yaw := -(nose.X - eyes.X) * cfg.YawSensitivity * factor
	pitch := (nose.Y - eyes.Y - cfg.PitchNeutral) * cfg.PitchSensitivity * factor

	return Values{HeadZ: yaw, HeadY: pitch}, true
}

// Leg derives the side's hip_y, knee_y and ankle_y.
func Leg(s *landmark.Set, side Side, cfg LegConfig) (Values, bool) {
	l := side.landmarks()
	if !s.AllValid(l.hip, l.knee, l.ankle) {
		return nil, false
	}
	hip, _ := s.Get(l.hip)
	knee, _ := s.Get(l.knee)
	ankle, _ := s.Get(l.ankle)

	bend := angleBetween(vec2(knee, hip), vec2(knee, ankle))

	return Values{
		side.Joint(HipY):   (knee.X - hip.X) * cfg.HipSensitivity * side.Sign(),
		side.Joint(KneeY):  remap(bend, 0, math.Pi, cfg.KneeBent, cfg.KneeStraight),
		side.Joint(AnkleY): -(ankle.Y - knee.Y - cfg.AnkleRestOffset) * cfg.AnkleScale,
	}, true
}

// Arm derives the side's shoulder_x, shoulder_y, arm_z and elbow_y.
// hist receives the arm's total length on every valid frame.
func Arm(s *landmark.Set, side Side, cfg ArmConfig, hist *ArmHistory) (Values, bool) {
	l := side.landmarks()
	if !s.AllValid(l.shoulder, l.elbow, l.wrist) {
		return nil, false
	}
	shoulder, _ := s.Get(l.shoulder)
	elbow, _ := s.Get(l.elbow)
	wrist, _ := s.Get(l.wrist)

	upper := vec2(shoulder, elbow)
	fore := vec2(elbow, wrist)
	sign := side.Sign()

	elbowAngle := angleBetween(vec2(elbow, shoulder), fore)
	elbowY := sign * remap(elbowAngle, 0, math.Pi, cfg.ElbowBent, cfg.ElbowStraight)

	hist.Push(r3.Norm(upper) + r3.Norm(fore))
	ratio := 1.0
	if m := hist.Max(); m > 0 {
		ratio = (r3.Norm(upper) + r3.Norm(fore)) / m
	}

	// 0 when the upper arm is horizontal, π/2 when vertical.
	deviation := math.Atan2(math.Abs(upper.Y), math.Abs(upper.X))
	forward := deviation <= cfg.HorizontalWindow &&
		ratio < cfg.ForeshorteningThreshold &&
		hist.Len() >= cfg.MinHistory

	v := Values{side.Joint(ArmZ): 0, side.Joint(ElbowY): elbowY}
	if forward {
		v[side.Joint(ShoulderX)] = sign * cfg.ShoulderXForward
		v[side.Joint(ShoulderY)] = 0
	} else {
		v[side.Joint(ShoulderX)] = sign * remap(deviation, 0, math.Pi/2, cfg.ShoulderXSideways, cfg.ShoulderXVertical)
		v[side.Joint(ShoulderY)] = -upper.Y * cfg.ShoulderYScale * sign
	}
	return v, true
}
