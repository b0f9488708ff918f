package overlay

import (
	"bytes"
	"slices"
	"testing"

	"github.com/teslashibe/go-mimic/pkg/landmark"
)

func TestPrimitives_Empty(t *testing.T) {
	if n := len(slices.Collect(Primitives(nil))); n != 0 {
		t.Errorf("nil set yielded %d primitives", n)
	}
	if n := len(slices.Collect(Primitives(landmark.FromMap(nil)))); n != 0 {
		t.Errorf("empty set yielded %d primitives", n)
	}
}

func TestPrimitives_VisibilityGating(t *testing.T) {
	s := landmark.FromMap(map[landmark.Index]landmark.Point{
		landmark.LeftShoulder: landmark.Pt(0.6, 0.3),
		landmark.LeftElbow:    landmark.Pt(0.65, 0.45).WithVisibility(0.9),
		landmark.LeftWrist:    landmark.Pt(0.7, 0.6).WithVisibility(0.2),
	})

	prims := slices.Collect(Primitives(s))

	var lines, points []Primitive
	for _, p := range prims {
		switch p.Kind {
		case Line:
			lines = append(lines, p)
		case Point:
			points = append(points, p)
		}
	}
	if len(lines) != 2 || len(points) != 3 {
		t.Fatalf("got %d lines and %d points, want 2 and 3", len(lines), len(points))
	}

	// Connections list shoulder-elbow before elbow-wrist.
	if !lines[0].Draw || lines[0].X1 != 0.6 || lines[0].Y2 != 0.45 {
		t.Errorf("shoulder-elbow = %+v", lines[0])
	}
	if lines[1].Draw {
		t.Error("segment ending at a low-visibility wrist should not draw")
	}
	if points[2].Draw {
		t.Error("low-visibility wrist point should not draw")
	}
}

func TestPrimitives_StopsEarly(t *testing.T) {
	s := landmark.FromMap(map[landmark.Index]landmark.Point{
		landmark.Nose:         landmark.Pt(0.5, 0.2),
		landmark.LeftEyeInner: landmark.Pt(0.51, 0.18),
		landmark.LeftEye:      landmark.Pt(0.52, 0.18),
	})

	n := 0
	for range Primitives(s) {
		n++
		if n == 1 {
			break
		}
	}
	if n != 1 {
		t.Errorf("iterated %d primitives after break", n)
	}
}

func TestRenderJPEG(t *testing.T) {
	s := landmark.FromMap(map[landmark.Index]landmark.Point{
		landmark.LeftShoulder:  landmark.Pt(0.6, 0.3),
		landmark.RightShoulder: landmark.Pt(0.4, 0.3),
	})

	data, err := RenderJPEG(64, 48, Primitives(s), DefaultStyle())
	if err != nil {
		t.Fatalf("RenderJPEG: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("output should be a JPEG")
	}

	if _, err := RenderJPEG(0, 10, Primitives(s), DefaultStyle()); err == nil {
		t.Error("zero width should fail")
	}
}

func TestDefaultStyle_Colors(t *testing.T) {
	s := DefaultStyle()
	if s.LineColor.G != 255 || s.LineColor.R != 0 || s.LineColor.B != 0 {
		t.Errorf("LineColor = %+v, want green", s.LineColor)
	}
	if s.PointColor.R != 255 || s.PointColor.G != 0 || s.PointColor.B != 0 {
		t.Errorf("PointColor = %+v, want red", s.PointColor)
	}
}
