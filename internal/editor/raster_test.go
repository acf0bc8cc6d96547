package editor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 200}
			if (x+y)%2 == 0 {
				c.R, c.G, c.B = 255, 255, 255
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func channelVariance(img *image.NRGBA, r image.Rectangle) float64 {
	var sum, count float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += float64(img.Pix[img.PixOffset(x, y)])
			count++
		}
	}
	mean := sum / count

	var variance float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			d := float64(img.Pix[img.PixOffset(x, y)]) - mean
			variance += d * d
		}
	}
	return variance / count
}

func TestApplyBlurReducesVariance(t *testing.T) {
	img := checkerboard(40, 40)
	region := image.Rect(4, 4, 36, 36)

	before := channelVariance(img, region)
	ApplyBlur(img, []BlurRegion{{Rect: Rect{X: 4, Y: 4, W: 32, H: 32}}})
	after := channelVariance(img, region)

	assert.Less(t, after, before, "blur must pull pixels toward the local mean")
}

func TestApplyBlurLeavesAlphaUntouched(t *testing.T) {
	img := checkerboard(30, 30)
	ApplyBlur(img, []BlurRegion{{Rect: Rect{X: 0, Y: 0, W: 30, H: 30}}})

	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			require.Equal(t, uint8(200), img.Pix[img.PixOffset(x, y)+3], "alpha changed at (%d,%d)", x, y)
		}
	}
}

func TestApplyBlurStaysInsideRegion(t *testing.T) {
	img := checkerboard(40, 40)
	ApplyBlur(img, []BlurRegion{{Rect: Rect{X: 10, Y: 10, W: 10, H: 10}}})

	// A pixel far outside the region keeps its original checkerboard value.
	i := img.PixOffset(2, 2)
	if (2+2)%2 == 0 {
		assert.Equal(t, uint8(255), img.Pix[i])
	} else {
		assert.Equal(t, uint8(0), img.Pix[i])
	}
}

func TestApplyBlurIgnoresOutOfBoundsRegion(t *testing.T) {
	img := checkerboard(10, 10)
	// Must not panic on regions outside the raster.
	ApplyBlur(img, []BlurRegion{{Rect: Rect{X: 50, Y: 50, W: 20, H: 20}}})
}

func TestBurnInDrawsAfterBlur(t *testing.T) {
	img := checkerboard(60, 60)
	red := color.NRGBA{R: 255, A: 255}

	ApplyBlur(img, []BlurRegion{{Rect: Rect{X: 0, Y: 0, W: 60, H: 60}}})
	err := BurnIn(img, []Annotation{{
		Kind:        KindPen,
		Points:      []Point{{X: 5, Y: 30}, {X: 55, Y: 30}},
		Color:       red,
		StrokeWidth: 4,
	}})
	require.NoError(t, err)

	// The stroke center must carry the exact annotation color: annotations
	// are burned in after blur, never averaged.
	i := img.PixOffset(30, 30)
	assert.Equal(t, uint8(255), img.Pix[i])
	assert.Equal(t, uint8(0), img.Pix[i+1])
	assert.Equal(t, uint8(0), img.Pix[i+2])
}

func TestBurnInArrow(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	blue := color.NRGBA{B: 255, A: 255}

	err := BurnIn(img, []Annotation{{
		Kind:        KindArrow,
		Origin:      Point{X: 10, Y: 50},
		DX:          70,
		DY:          0,
		Color:       blue,
		StrokeWidth: 2,
	}})
	require.NoError(t, err)

	// Shaft midpoint and tip painted.
	assert.Equal(t, uint8(255), img.Pix[img.PixOffset(45, 50)+2])
	assert.Equal(t, uint8(255), img.Pix[img.PixOffset(80, 50)+2])
	// Arrowhead wings land behind and off-axis from the tip.
	wingHit := false
	for y := 40; y <= 60; y++ {
		if y == 50 {
			continue
		}
		for x := 65; x < 80; x++ {
			if img.Pix[img.PixOffset(x, y)+2] == 255 {
				wingHit = true
			}
		}
	}
	assert.True(t, wingHit, "expected arrowhead pixels off the shaft axis")
}

func TestBurnInCircleStaysOnOutline(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	green := color.NRGBA{G: 255, A: 255}

	err := BurnIn(img, []Annotation{{
		Kind:        KindCircle,
		Bounds:      Rect{X: 20, Y: 20, W: 60, H: 60},
		Color:       green,
		StrokeWidth: 2,
	}})
	require.NoError(t, err)

	// Rightmost point of the ellipse outline is painted, the center is not.
	assert.Equal(t, uint8(255), img.Pix[img.PixOffset(79, 50)+1])
	assert.Equal(t, uint8(0), img.Pix[img.PixOffset(50, 50)+1])
}

func TestBurnInText(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 80))
	red := color.NRGBA{R: 255, A: 255}

	err := BurnIn(img, []Annotation{{
		Kind:        KindText,
		Origin:      Point{X: 10, Y: 50},
		Text:        "proof",
		Color:       red,
		StrokeWidth: 3,
	}})
	require.NoError(t, err)

	painted := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			painted++
		}
	}
	assert.Greater(t, painted, 0, "text burn-in left no pixels")
}

func TestCropSelection(t *testing.T) {
	img := checkerboard(100, 80)
	cropped := CropSelection(img, Rect{X: 10, Y: 20, W: 40, H: 30})

	assert.Equal(t, 40, cropped.Bounds().Dx())
	assert.Equal(t, 30, cropped.Bounds().Dy())
}

func TestBurnInUnknownKind(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	err := BurnIn(img, []Annotation{{Kind: AnnotationKind("sparkle")}})
	assert.Error(t, err)
}
