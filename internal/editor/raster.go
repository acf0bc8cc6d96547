package editor

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// BlurRadius is the box-blur sampling radius in native pixels.
const BlurRadius = 10

const (
	arrowHeadLength = 15
	arrowHeadAngle  = 30 * math.Pi / 180
)

// ApplyBlur averages the RGB channels of every pixel inside each region over
// the radius box clipped to that region's bounds. The alpha channel is left
// untouched. Samples come from a pristine copy of the region so earlier
// writes never smear into later means. O(region_area * radius^2), which is
// fine for small regions applied once at finalize time.
func ApplyBlur(img *image.NRGBA, regions []BlurRegion) {
	for _, region := range regions {
		r := region.Rect.imageRect().Intersect(img.Bounds())
		if r.Empty() {
			continue
		}
		src := cloneRegion(img, r)

		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				var sumR, sumG, sumB, count int
				for dy := -BlurRadius; dy <= BlurRadius; dy++ {
					sy := y + dy
					if sy < r.Min.Y || sy >= r.Max.Y {
						continue
					}
					for dx := -BlurRadius; dx <= BlurRadius; dx++ {
						sx := x + dx
						if sx < r.Min.X || sx >= r.Max.X {
							continue
						}
						i := src.PixOffset(sx, sy)
						sumR += int(src.Pix[i])
						sumG += int(src.Pix[i+1])
						sumB += int(src.Pix[i+2])
						count++
					}
				}
				i := img.PixOffset(x, y)
				img.Pix[i] = uint8(sumR / count)
				img.Pix[i+1] = uint8(sumG / count)
				img.Pix[i+2] = uint8(sumB / count)
			}
		}
	}
}

func cloneRegion(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	clone := image.NewNRGBA(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		start := img.PixOffset(r.Min.X, y)
		end := img.PixOffset(r.Max.X, y)
		copy(clone.Pix[start:end], img.Pix[start:end])
	}
	return clone
}

// BurnIn rasterizes annotations into the image in creation order. Blur must
// already have been applied: draw order guarantees annotations are never
// blurred.
func BurnIn(img *image.NRGBA, anns []Annotation) error {
	for _, a := range anns {
		switch a.Kind {
		case KindPen:
			for i := 1; i < len(a.Points); i++ {
				drawSegment(img, a.Points[i-1], a.Points[i], a)
			}
		case KindArrow:
			drawArrow(img, a)
		case KindCircle:
			drawEllipse(img, a)
		case KindText:
			if err := drawText(img, a); err != nil {
				return fmt.Errorf("draw text: %w", err)
			}
		default:
			return fmt.Errorf("unknown annotation kind %q", a.Kind)
		}
	}
	return nil
}

// CropSelection returns the image cropped to the selection rectangle,
// clipped to the image bounds.
func CropSelection(img *image.NRGBA, sel Rect) *image.NRGBA {
	return imaging.Crop(img, sel.imageRect())
}

func drawArrow(img *image.NRGBA, a Annotation) {
	tip := Point{X: a.Origin.X + a.DX, Y: a.Origin.Y + a.DY}
	drawSegment(img, a.Origin, tip, a)

	angle := math.Atan2(a.DY, a.DX)
	for _, side := range []float64{-arrowHeadAngle, arrowHeadAngle} {
		back := angle + math.Pi + side
		end := Point{
			X: tip.X + arrowHeadLength*math.Cos(back),
			Y: tip.Y + arrowHeadLength*math.Sin(back),
		}
		drawSegment(img, tip, end, a)
	}
}

func drawEllipse(img *image.NRGBA, a Annotation) {
	cx := a.Bounds.X + a.Bounds.W/2
	cy := a.Bounds.Y + a.Bounds.H/2
	rx := a.Bounds.W / 2
	ry := a.Bounds.H / 2

	circumference := math.Pi * (rx + ry)
	steps := int(math.Max(circumference, 16))
	prev := Point{X: cx + rx, Y: cy}
	for i := 1; i <= steps; i++ {
		t := 2 * math.Pi * float64(i) / float64(steps)
		p := Point{X: cx + rx*math.Cos(t), Y: cy + ry*math.Sin(t)}
		drawSegment(img, prev, p, a)
		prev = p
	}
}

// drawSegment walks the line one pixel step at a time, stamping a disc of
// the stroke width at each step.
func drawSegment(img *image.NRGBA, from, to Point, a Annotation) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		stamp(img, from, a)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		stamp(img, Point{X: from.X + dx*t, Y: from.Y + dy*t}, a)
	}
}

func stamp(img *image.NRGBA, p Point, a Annotation) {
	radius := a.StrokeWidth / 2
	if radius < 0.5 {
		radius = 0.5
	}
	minX := int(math.Floor(p.X - radius))
	maxX := int(math.Ceil(p.X + radius))
	minY := int(math.Floor(p.Y - radius))
	maxY := int(math.Ceil(p.Y + radius))

	bounds := img.Bounds()
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			ddx := float64(x) + 0.5 - p.X
			ddy := float64(y) + 0.5 - p.Y
			if ddx*ddx+ddy*ddy > radius*radius {
				continue
			}
			i := img.PixOffset(x, y)
			img.Pix[i] = a.Color.R
			img.Pix[i+1] = a.Color.G
			img.Pix[i+2] = a.Color.B
			img.Pix[i+3] = 0xff
		}
	}
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func annotationFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = freetype.ParseFont(goregular.TTF)
	})
	return fontTTF, fontErr
}

func drawText(img *image.NRGBA, a Annotation) error {
	f, err := annotationFont()
	if err != nil {
		return err
	}

	// Font size tracks stroke width so text scales with the rest of the
	// stroke styling.
	size := a.StrokeWidth * 8
	if size < 12 {
		size = 12
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(size)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(image.NewUniform(a.Color))

	pt := freetype.Pt(int(math.Round(a.Origin.X)), int(math.Round(a.Origin.Y)))
	if _, err := c.DrawString(a.Text, pt); err != nil {
		return err
	}
	return nil
}
