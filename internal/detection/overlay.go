package detection

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayOptions controls how detections are drawn.
type OverlayOptions struct {
	// Markers draws a small dot at each center instead of the outline.
	Markers bool

	// Low and High are the colors for confidence 0 and 1. Intermediate
	// confidences are blended in Lab space.
	Low  colorful.Color
	High colorful.Color

	// Labels prints the vote value next to each circle.
	Labels bool
}

// Overlay draws circles onto a copy of img. The source is never modified.
func Overlay(img image.Image, circles []Circle, opts OverlayOptions) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	for _, c := range circles {
		col := strengthColor(opts, c.Confidence)
		if opts.Markers || c.Radius == 0 {
			drawMarker(out, c.Center, col)
		} else {
			drawCircle(out, c.Center, c.Radius, col)
		}
		if opts.Labels {
			drawLabel(out, c, col)
		}
	}
	return out
}

func strengthColor(opts OverlayOptions, t float64) color.RGBA {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	r, g, b := opts.Low.BlendLab(opts.High, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// drawCircle rasterizes an outline with the midpoint algorithm. Pixels
// outside the image are skipped.
func drawCircle(img *image.RGBA, center Point, radius int, c color.RGBA) {
	cx, cy := center.X, center.Y
	x, y := radius, 0
	err := 1 - radius

	for x >= y {
		for _, p := range [8][2]int{
			{cx + x, cy + y}, {cx + y, cy + x}, {cx - y, cy + x}, {cx - x, cy + y},
			{cx - x, cy - y}, {cx - y, cy - x}, {cx + y, cy - x}, {cx + x, cy - y},
		} {
			setIfInside(img, p[0], p[1], c)
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func drawMarker(img *image.RGBA, center Point, c color.RGBA) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			setIfInside(img, center.X+dx, center.Y+dy, c)
		}
	}
}

func drawLabel(img *image.RGBA, c Circle, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(c.Center.X+c.Radius+2, c.Center.Y-c.Radius),
	}
	d.DrawString(fmt.Sprintf("%.0f", c.Votes))
}

func setIfInside(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetRGBA(x, y, c)
	}
}
