// Package overlay turns landmark sets into skeleton drawing primitives and
// rasterizes them.
package overlay

import (
	"iter"

	"github.com/teslashibe/go-mimic/pkg/landmark"
)

// Kind distinguishes primitive types.
type Kind string

const (
	Line  Kind = "line"
	Point Kind = "point"
)

// Primitive is one skeleton segment or landmark dot in normalized image
// coordinates. X2/Y2 are only meaningful for lines.
type Primitive struct {
	Kind Kind    `json:"kind"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2,omitempty"`
	Y2   float64 `json:"y2,omitempty"`

	// Draw is false when a landmark involved failed the visibility check.
	// Renderers may skip or dim such primitives.
	Draw bool `json:"draw"`
}

// Primitives lazily yields the skeleton segments, then the landmark dots.
// A nil or empty set yields nothing, which clears the overlay.
func Primitives(s *landmark.Set) iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		if s.Empty() {
			return
		}

		for _, c := range landmark.Connections {
			a, okA := s.Get(c.From)
			b, okB := s.Get(c.To)
			if !okA || !okB {
				continue
			}
			p := Primitive{
				Kind: Line,
				X1:   a.X, Y1: a.Y,
				X2: b.X, Y2: b.Y,
				Draw: a.Confident() && b.Confident(),
			}
			if !yield(p) {
				return
			}
		}

		for i := landmark.Index(0); i < landmark.Count; i++ {
			pt, ok := s.Get(i)
			if !ok {
				continue
			}
			if !yield(Primitive{Kind: Point, X1: pt.X, Y1: pt.Y, Draw: pt.Confident()}) {
				return
			}
		}
	}
}
