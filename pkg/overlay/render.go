package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"iter"

	"gocv.io/x/gocv"
)

// Style controls rasterization.
type Style struct {
	LineColor     color.RGBA
	PointColor    color.RGBA
	HiddenColor   color.RGBA // Used for primitives with Draw=false
	LineThickness int
	PointRadius   int
	ShowHidden    bool
}

// DefaultStyle draws green bones with red joints and hides low-confidence
// primitives.
func DefaultStyle() Style {
	return Style{
		LineColor:     color.RGBA{0, 255, 0, 255},
		PointColor:    color.RGBA{255, 0, 0, 255},
		HiddenColor:   color.RGBA{90, 90, 90, 255},
		LineThickness: 2,
		PointRadius:   3,
	}
}

// Render draws prims onto img, scaling normalized coordinates to its size.
func Render(img *gocv.Mat, prims iter.Seq[Primitive], style Style) {
	w, h := float64(img.Cols()), float64(img.Rows())
	px := func(x, y float64) image.Point {
		return image.Pt(int(x*w), int(y*h))
	}

	for p := range prims {
		if !p.Draw && !style.ShowHidden {
			continue
		}
		switch p.Kind {
		case Line:
			c := style.LineColor
			if !p.Draw {
				c = style.HiddenColor
			}
			gocv.Line(img, px(p.X1, p.Y1), px(p.X2, p.Y2), c, style.LineThickness)
		case Point:
			c := style.PointColor
			if !p.Draw {
				c = style.HiddenColor
			}
			gocv.Circle(img, px(p.X1, p.Y1), style.PointRadius, c, -1)
		}
	}
}

// RenderJPEG draws prims on a black width×height canvas and encodes it.
func RenderJPEG(width, height int, prims iter.Seq[Primitive], style Style) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("overlay: invalid canvas %dx%d", width, height)
	}

	canvas := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	Render(&canvas, prims, style)

	buf, err := gocv.IMEncode(".jpg", canvas)
	if err != nil {
		return nil, fmt.Errorf("overlay: encode: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}
