// Package visibility classifies how much of the subject is in frame.
package visibility

import (
	"math"

	"github.com/teslashibe/go-mimic/pkg/landmark"
)

// State is the framing of the subject in one detection.
type State string

const (
	FullBody  State = "full_body"
	UpperBody State = "upper_body"
	HeadOnly  State = "head_only"
	None      State = "none"
)

// Thresholds bound the normalized heights for each state.
type Thresholds struct {
	HeadToToe float64 `mapstructure:"head_to_toe" json:"head_to_toe"` // FullBody: headToToe <= this
	HipToToe  float64 `mapstructure:"hip_to_toe" json:"hip_to_toe"`   // FullBody: hipToToe < this
	HeadToHip float64 `mapstructure:"head_to_hip" json:"head_to_hip"` // UpperBody: headToHip <= this
	Head      float64 `mapstructure:"head" json:"head"`               // HeadOnly: head <= this
}

// DefaultThresholds returns the tuned thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeadToToe: 0.844,
		HipToToe:  0.429,
		HeadToHip: 0.502,
		Head:      0.191,
	}
}

// Heights are absolute vertical spans in normalized image units. A span is
// nil when its landmarks are not all present.
type Heights struct {
	HipToToe  *float64 `json:"hip_to_toe,omitempty"`
	HeadToToe *float64 `json:"head_to_toe,omitempty"`
	HeadToHip *float64 `json:"head_to_hip,omitempty"`
	Head      *float64 `json:"head,omitempty"`
}

var (
	upperBodyLandmarks = []landmark.Index{
		landmark.Nose,
		landmark.LeftShoulder, landmark.RightShoulder,
		landmark.LeftHip, landmark.RightHip,
		landmark.LeftElbow, landmark.RightElbow,
		landmark.LeftWrist, landmark.RightWrist,
	}
	headLandmarks = []landmark.Index{
		landmark.Nose,
		landmark.LeftEye, landmark.RightEye,
		landmark.LeftEar, landmark.RightEar,
		landmark.MouthLeft, landmark.MouthRight,
	}
)

// Measure computes the spans of a landmark set.
func Measure(s *landmark.Set) Heights {
	var h Heights
	if s.Empty() {
		return h
	}

	span := func(a, b float64) *float64 {
		v := math.Abs(b - a)
		return &v
	}

	nose, hasNose := s.Get(landmark.Nose)
	hipMid, hasHips := midpoint(s, landmark.LeftHip, landmark.RightHip)
	toeY, hasToe := lowestFoot(s)

	if hasHips && hasToe {
		h.HipToToe = span(hipMid.Y, toeY)
	}
	if hasNose && hasToe {
		h.HeadToToe = span(nose.Y, toeY)
	}
	// Nose to hip midpoint. A shoulder-midpoint to hip-midpoint torso span is
	// steadier under head tilt; thresholds would need recalibrating to use it.
	if hasNose && hasHips {
		h.HeadToHip = span(nose.Y, hipMid.Y)
	}

	eyeMid, hasEyes := midpoint(s, landmark.LeftEye, landmark.RightEye)
	mouthMid, hasMouth := midpoint(s, landmark.MouthLeft, landmark.MouthRight)
	if hasEyes && hasMouth {
		h.Head = span(eyeMid.Y, mouthMid.Y)
	}
	return h
}

// Classify picks the first state whose conditions hold, in the order
// FullBody, UpperBody, HeadOnly, None.
func Classify(s *landmark.Set, th Thresholds) State {
	if s.Empty() {
		return None
	}
	h := Measure(s)

	if h.HeadToToe != nil && h.HipToToe != nil &&
		*h.HeadToToe <= th.HeadToToe && *h.HipToToe < th.HipToToe {
		return FullBody
	}
	if h.HeadToHip != nil && *h.HeadToHip <= th.HeadToHip && s.AllValid(upperBodyLandmarks...) {
		return UpperBody
	}
	if h.Head != nil && *h.Head <= th.Head && s.AllValid(headLandmarks...) {
		return HeadOnly
	}
	return None
}

func midpoint(s *landmark.Set, a, b landmark.Index) (landmark.Point, bool) {
	pa, okA := s.Get(a)
	pb, okB := s.Get(b)
	if !okA || !okB {
		return landmark.Point{}, false
	}
	return landmark.Midpoint(pa, pb), true
}

// lowestFoot returns the largest foot-index y (image y grows downward).
func lowestFoot(s *landmark.Set) (float64, bool) {
	y, found := 0.0, false
	for _, i := range []landmark.Index{landmark.LeftFootIndex, landmark.RightFootIndex} {
		p, ok := s.Get(i)
		if !ok {
			continue
		}
		if !found || p.Y > y {
			y, found = p.Y, true
		}
	}
	return y, found
}
