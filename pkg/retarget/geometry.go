package retarget

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-mimic/pkg/landmark"
)

// vec2 is the image-plane vector from a to b. Depth is dropped.
func vec2(a, b landmark.Point) r3.Vec {
	return r3.Vec{X: b.X - a.X, Y: b.Y - a.Y}
}

// signedAngle is the direction of v in the image plane.
func signedAngle(v r3.Vec) float64 {
	return math.Atan2(v.Y, v.X)
}

// angleBetween is the unsigned angle between a and b in [0, π].
// It is NaN when either vector has zero length.
func angleBetween(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	return math.Acos(clamp(r3.Dot(a, b)/(na*nb), -1, 1))
}

// remap maps v linearly from [inMin, inMax] onto [outMin, outMax].
func remap(v, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	return outMin + (v-inMin)/(inMax-inMin)*(outMax-outMin)
}

func deadZone(v, zone float64) float64 {
	if math.Abs(v) < zone {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
