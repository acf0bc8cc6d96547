package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(100, 100, 100, 100)
	require.NoError(t, err)
	return s
}

func TestNormalizeRectReversedDrag(t *testing.T) {
	r := normalizeRect(Point{X: 10, Y: 10}, Point{X: 5, Y: 5})
	assert.Equal(t, Rect{X: 5, Y: 5, W: 5, H: 5}, r)
}

func TestBlurCommitNormalizesDragDirection(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetTool(ToolBlur))

	require.NoError(t, s.Begin(Point{X: 30, Y: 30}))
	require.NoError(t, s.End(Point{X: 5, Y: 5}))

	regions := s.BlurRegions()
	require.Len(t, regions, 1)
	assert.Equal(t, Rect{X: 5, Y: 5, W: 25, H: 25}, regions[0].Rect)
}

func TestCommitThresholds(t *testing.T) {
	s := newTestSession(t)

	// A 3x3 drag is below the blur threshold and must not commit.
	require.NoError(t, s.SetTool(ToolBlur))
	require.NoError(t, s.Begin(Point{X: 0, Y: 0}))
	require.NoError(t, s.End(Point{X: 3, Y: 3}))
	assert.Empty(t, s.BlurRegions())

	// An 11x11 drag exceeds it in both dimensions.
	require.NoError(t, s.Begin(Point{X: 0, Y: 0}))
	require.NoError(t, s.End(Point{X: 11, Y: 11}))
	assert.Len(t, s.BlurRegions(), 1)

	// Arrows only need to exceed 5px in one dimension.
	require.NoError(t, s.SetTool(ToolArrow))
	require.NoError(t, s.Begin(Point{X: 0, Y: 0}))
	require.NoError(t, s.End(Point{X: 7, Y: 3}))
	require.Len(t, s.Annotations(), 1)
	assert.Equal(t, KindArrow, s.Annotations()[0].Kind)

	// But a 3x3 arrow drag stays an accidental click.
	require.NoError(t, s.Begin(Point{X: 0, Y: 0}))
	require.NoError(t, s.End(Point{X: 3, Y: 3}))
	assert.Len(t, s.Annotations(), 1)
}

func TestScaleToNativeSpace(t *testing.T) {
	s, err := NewSession(500, 500, 1000, 1000)
	require.NoError(t, err)

	p := s.Scale(Point{X: 50, Y: 50})
	assert.Equal(t, Point{X: 100, Y: 100}, p)
}

func TestCommitScalesIndependentlyPerAxis(t *testing.T) {
	s, err := NewSession(400, 200, 800, 800)
	require.NoError(t, err)
	require.NoError(t, s.SetTool(ToolBlur))

	require.NoError(t, s.Begin(Point{X: 20, Y: 20}))
	require.NoError(t, s.End(Point{X: 40, Y: 40}))

	regions := s.BlurRegions()
	require.Len(t, regions, 1)
	// X scales by 2, Y scales by 4.
	assert.Equal(t, Rect{X: 40, Y: 80, W: 40, H: 80}, regions[0].Rect)
}

func TestPenAccumulatesPath(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetTool(ToolPen))

	require.NoError(t, s.Begin(Point{X: 1, Y: 1}))
	require.NoError(t, s.Move(Point{X: 2, Y: 2}))
	require.NoError(t, s.Move(Point{X: 3, Y: 1}))
	require.NoError(t, s.End(Point{X: 4, Y: 4}))

	anns := s.Annotations()
	require.Len(t, anns, 1)
	assert.Equal(t, KindPen, anns[0].Kind)
	assert.Len(t, anns[0].Points, 4)
}

func TestTextNeedsContent(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetTool(ToolText))

	assert.ErrorIs(t, s.AddText(Point{X: 10, Y: 10}, "   "), ErrEmptyText)
	require.NoError(t, s.AddText(Point{X: 10, Y: 10}, "hello"))

	anns := s.Annotations()
	require.Len(t, anns, 1)
	assert.Equal(t, "hello", anns[0].Text)
}

func TestStateMachineGuards(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetTool(ToolCircle))

	assert.ErrorIs(t, s.Move(Point{}), ErrNotDrawing)
	assert.ErrorIs(t, s.End(Point{}), ErrNotDrawing)

	require.NoError(t, s.Begin(Point{}))
	assert.True(t, s.Drawing())
	assert.ErrorIs(t, s.Begin(Point{}), ErrBusyDrawing)

	require.NoError(t, s.End(Point{X: 20, Y: 20}))
	assert.False(t, s.Drawing())
}

func TestSelectionCommit(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetTool(ToolSelect))

	require.NoError(t, s.Begin(Point{X: 60, Y: 60}))
	require.NoError(t, s.End(Point{X: 10, Y: 20}))

	sel := s.Selection()
	require.NotNil(t, sel)
	assert.Equal(t, Rect{X: 10, Y: 20, W: 50, H: 40}, *sel)
}

func TestAnnotationCreationOrderPreserved(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SetTool(ToolCircle))
	require.NoError(t, s.Begin(Point{X: 0, Y: 0}))
	require.NoError(t, s.End(Point{X: 20, Y: 20}))

	require.NoError(t, s.SetTool(ToolArrow))
	require.NoError(t, s.Begin(Point{X: 0, Y: 0}))
	require.NoError(t, s.End(Point{X: 20, Y: 20}))

	require.NoError(t, s.SetTool(ToolText))
	require.NoError(t, s.AddText(Point{X: 5, Y: 5}, "note"))

	anns := s.Annotations()
	require.Len(t, anns, 3)
	assert.Equal(t, KindCircle, anns[0].Kind)
	assert.Equal(t, KindArrow, anns[1].Kind)
	assert.Equal(t, KindText, anns[2].Kind)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xff), c.R)
	assert.Equal(t, uint8(0x80), c.G)
	assert.Equal(t, uint8(0x00), c.B)
	assert.Equal(t, uint8(0xff), c.A)

	_, err = ParseHexColor("red")
	assert.Error(t, err)
}
