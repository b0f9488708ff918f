// Package landmark defines the 33-point body pose produced by the external
// pose estimator.
package landmark

import (
	"encoding/json"
	"fmt"
)

// Index names a landmark position in a Set (MediaPipe Pose ordering).
type Index int

// Pose landmark indices.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose Index = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// Count is the number of landmarks in a full Set.
	Count = 33
)

var indexNames = [Count]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// String returns the landmark's snake_case name.
func (i Index) String() string {
	if i < 0 || int(i) >= Count {
		return fmt.Sprintf("landmark(%d)", int(i))
	}
	return indexNames[i]
}

// VisibilityThreshold is the confidence a landmark needs to count as valid.
const VisibilityThreshold = 0.5

// Point is one landmark in normalized image coordinates ([0,1], y down).
// Z is a relative depth proxy, not metric.
type Point struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Pt builds a point without depth or visibility.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// WithZ returns a copy of p carrying depth z.
func (p Point) WithZ(z float64) Point {
	p.Z = &z
	return p
}

// WithVisibility returns a copy of p carrying visibility v.
func (p Point) WithVisibility(v float64) Point {
	p.Visibility = &v
	return p
}

// Depth returns Z and whether it was reported.
func (p Point) Depth() (float64, bool) {
	if p.Z == nil {
		return 0, false
	}
	return *p.Z, true
}

// Confident reports whether the estimator's visibility passes the threshold.
// Points without a visibility score are trusted.
func (p Point) Confident() bool {
	return p.Visibility == nil || *p.Visibility > VisibilityThreshold
}

// Midpoint returns the point halfway between a and b (depth averaged when both have it).
func Midpoint(a, b Point) Point {
	m := Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
	za, okA := a.Depth()
	zb, okB := b.Depth()
	if okA && okB {
		m = m.WithZ((za + zb) / 2)
	}
	return m
}

// Set is one detection frame's landmarks. A nil *Set means no subject.
// Individual points may be absent.
type Set struct {
	points  [Count]Point
	present [Count]bool
}

// NewSet builds a set from exactly Count points, or an empty set from none.
// nil entries mark absent landmarks.
func NewSet(points []*Point) (*Set, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if len(points) != Count {
		return nil, fmt.Errorf("landmark: expected %d points, got %d", Count, len(points))
	}
	s := &Set{}
	for i, p := range points {
		if p == nil {
			continue
		}
		s.points[i] = *p
		s.present[i] = true
	}
	return s, nil
}

// FromMap builds a set holding only the given landmarks. Useful for
// synthetic frames.
func FromMap(points map[Index]Point) *Set {
	s := &Set{}
	for i, p := range points {
		if i < 0 || int(i) >= Count {
			continue
		}
		s.points[i] = p
		s.present[i] = true
	}
	return s
}

// Get returns the landmark at i and whether it is present.
func (s *Set) Get(i Index) (Point, bool) {
	if s == nil || i < 0 || int(i) >= Count || !s.present[i] {
		return Point{}, false
	}
	return s.points[i], true
}

// Valid reports whether the landmark is present and confident.
func (s *Set) Valid(i Index) bool {
	p, ok := s.Get(i)
	return ok && p.Confident()
}

// AllValid reports whether every listed landmark is valid.
func (s *Set) AllValid(indices ...Index) bool {
	for _, i := range indices {
		if !s.Valid(i) {
			return false
		}
	}
	return true
}

// Empty reports whether the set holds no landmarks at all.
func (s *Set) Empty() bool {
	if s == nil {
		return true
	}
	for _, ok := range s.present {
		if ok {
			return false
		}
	}
	return true
}

// Points returns the set as Count entries with nil for absent landmarks.
func (s *Set) Points() []*Point {
	if s == nil {
		return nil
	}
	out := make([]*Point, Count)
	for i := range s.points {
		if s.present[i] {
			p := s.points[i]
			out[i] = &p
		}
	}
	return out
}

// MarshalJSON encodes the set as an array of Count points or nulls.
func (s *Set) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Points())
}

// UnmarshalJSON decodes an array of Count points or nulls.
func (s *Set) UnmarshalJSON(data []byte) error {
	var points []*Point
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("landmark: decode set: %w", err)
	}
	decoded, err := NewSet(points)
	if err != nil {
		return err
	}
	if decoded == nil {
		*s = Set{}
		return nil
	}
	*s = *decoded
	return nil
}
