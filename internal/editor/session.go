package editor

import (
	"errors"
	"image/color"
	"strings"
)

// Commit thresholds, measured in overlay pixels. A drag below the threshold
// is an accidental click and produces no shape.
const (
	blurMinSize  = 10 // must exceed in both dimensions
	shapeMinSize = 5  // must exceed in either dimension
)

var (
	ErrNotDrawing   = errors.New("no drag in progress")
	ErrBusyDrawing  = errors.New("drag already in progress")
	ErrUnknownTool  = errors.New("unknown tool")
	ErrEmptyText    = errors.New("empty text annotation")
	ErrBadDimension = errors.New("display and native dimensions must be positive")
)

// Session holds the mutable state of one annotation/blur editing
// interaction: selected tool, in-progress drag and the committed shapes.
// Pointer input is sampled in overlay (display) pixel space; shapes are
// rescaled to the source's native pixel space at commit time, so burn-in
// operates at true image resolution regardless of on-screen scaling.
//
// Sessions are not safe for concurrent use; callers serialize access.
type Session struct {
	displayW, displayH float64
	nativeW, nativeH   float64

	tool        Tool
	color       color.NRGBA
	strokeWidth float64

	drawing bool
	start   Point
	current Point
	path    []Point

	blurRegions []BlurRegion
	annotations []Annotation
	selection   *Rect
}

func NewSession(displayW, displayH, nativeW, nativeH float64) (*Session, error) {
	if displayW <= 0 || displayH <= 0 || nativeW <= 0 || nativeH <= 0 {
		return nil, ErrBadDimension
	}
	return &Session{
		displayW:    displayW,
		displayH:    displayH,
		nativeW:     nativeW,
		nativeH:     nativeH,
		tool:        ToolSelect,
		color:       color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff},
		strokeWidth: 3,
	}, nil
}

func (s *Session) SetTool(t Tool) error {
	switch t {
	case ToolSelect, ToolBlur, ToolArrow, ToolCircle, ToolPen, ToolText:
	default:
		return ErrUnknownTool
	}
	s.tool = t
	return nil
}

func (s *Session) Tool() Tool { return s.tool }

func (s *Session) SetColor(c color.NRGBA) { s.color = c }

func (s *Session) SetStrokeWidth(w float64) {
	if w > 0 {
		s.strokeWidth = w
	}
}

// Scale maps an overlay point to native image space, independently per axis.
func (s *Session) Scale(p Point) Point {
	return Point{
		X: p.X * s.nativeW / s.displayW,
		Y: p.Y * s.nativeH / s.displayH,
	}
}

func (s *Session) scaleRect(r Rect) Rect {
	sx := s.nativeW / s.displayW
	sy := s.nativeH / s.displayH
	return Rect{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// Begin enters the drawing state at a pointer-down. The text tool has no
// drag phase; its input arrives through AddText instead.
func (s *Session) Begin(p Point) error {
	if s.tool == ToolText {
		return nil
	}
	if s.drawing {
		return ErrBusyDrawing
	}
	s.drawing = true
	s.start = p
	s.current = p
	s.path = s.path[:0]
	if s.tool == ToolPen {
		s.path = append(s.path, p)
	}
	return nil
}

// Move samples the pointer during a drag.
func (s *Session) Move(p Point) error {
	if !s.drawing {
		return ErrNotDrawing
	}
	s.current = p
	if s.tool == ToolPen {
		s.path = append(s.path, p)
	}
	return nil
}

// End commits the in-progress drag on pointer-up. Rectangle shapes below
// their minimum size are discarded; the session returns to idle either way.
func (s *Session) End(p Point) error {
	if !s.drawing {
		return ErrNotDrawing
	}
	s.drawing = false
	s.current = p

	rect := normalizeRect(s.start, p)

	switch s.tool {
	case ToolBlur:
		if rect.W > blurMinSize && rect.H > blurMinSize {
			s.blurRegions = append(s.blurRegions, BlurRegion{Rect: s.scaleRect(rect)})
		}
	case ToolArrow:
		if rect.W > shapeMinSize || rect.H > shapeMinSize {
			origin := s.Scale(s.start)
			tip := s.Scale(p)
			s.annotations = append(s.annotations, Annotation{
				Kind:        KindArrow,
				Origin:      origin,
				DX:          tip.X - origin.X,
				DY:          tip.Y - origin.Y,
				Color:       s.color,
				StrokeWidth: s.strokeWidth,
			})
		}
	case ToolCircle:
		if rect.W > shapeMinSize || rect.H > shapeMinSize {
			s.annotations = append(s.annotations, Annotation{
				Kind:        KindCircle,
				Bounds:      s.scaleRect(rect),
				Color:       s.color,
				StrokeWidth: s.strokeWidth,
			})
		}
	case ToolPen:
		s.path = append(s.path, p)
		if len(s.path) >= 2 {
			scaled := make([]Point, len(s.path))
			for i, pt := range s.path {
				scaled[i] = s.Scale(pt)
			}
			s.annotations = append(s.annotations, Annotation{
				Kind:        KindPen,
				Points:      scaled,
				Color:       s.color,
				StrokeWidth: s.strokeWidth,
			})
		}
		s.path = nil
	case ToolSelect:
		if rect.W > shapeMinSize || rect.H > shapeMinSize {
			scaled := s.scaleRect(rect)
			s.selection = &scaled
		}
	}
	return nil
}

// AddText commits a text annotation anchored at a pointer-down position.
func (s *Session) AddText(p Point, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	s.annotations = append(s.annotations, Annotation{
		Kind:        KindText,
		Origin:      s.Scale(p),
		Text:        text,
		Color:       s.color,
		StrokeWidth: s.strokeWidth,
	})
	return nil
}

func (s *Session) Drawing() bool { return s.drawing }

// BlurRegions returns the committed blur regions in native coordinates.
func (s *Session) BlurRegions() []BlurRegion { return s.blurRegions }

// Annotations returns committed annotations in creation order. Burn-in
// preserves this order, so annotations are never themselves blurred.
func (s *Session) Annotations() []Annotation { return s.annotations }

// Selection returns the crop rectangle in native coordinates, or nil when
// no selection was made.
func (s *Session) Selection() *Rect { return s.selection }

// Reset discards all in-progress and committed state.
func (s *Session) Reset() {
	s.drawing = false
	s.path = nil
	s.blurRegions = nil
	s.annotations = nil
	s.selection = nil
}
