package editor

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Tool is one of the mutually exclusive editor modes.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolBlur   Tool = "blur"
	ToolArrow  Tool = "arrow"
	ToolCircle Tool = "circle"
	ToolPen    Tool = "pen"
	ToolText   Tool = "text"
)

// Point is a pixel position. Whether it lives in overlay (display) space or
// native image space depends on where it is used; shapes committed by a
// Session are always in native space.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle with non-negative dimensions.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// normalizeRect returns the axis-aligned rectangle spanned by two corner
// points, regardless of drag direction.
func normalizeRect(a, b Point) Rect {
	return Rect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
}

func (r Rect) imageRect() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)),
		int(math.Round(r.Y+r.H)),
	)
}

type AnnotationKind string

const (
	KindPen    AnnotationKind = "pen"
	KindArrow  AnnotationKind = "arrow"
	KindCircle AnnotationKind = "circle"
	KindText   AnnotationKind = "text"
)

// Annotation is one committed vector shape in native image coordinates.
// Annotations are ephemeral: they exist only until burn-in flattens them
// into the bitmap.
type Annotation struct {
	Kind        AnnotationKind
	Points      []Point // pen: ordered sampled path
	Origin      Point   // arrow origin, text anchor
	DX          float64 // arrow delta
	DY          float64
	Bounds      Rect // circle bounding box
	Text        string
	Color       color.NRGBA
	StrokeWidth float64
}

// BlurRegion marks an area whose pixels are irreversibly averaged before the
// bitmap leaves the editor. Unlike an Annotation it mutates underlying
// pixels rather than drawing on top.
type BlurRegion struct {
	Rect Rect
}

// ParseHexColor parses a #rrggbb stroke color.
func ParseHexColor(s string) (color.NRGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
