package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Pixel addresses one image cell by row (y) and column (x).
type Pixel struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// EdgeMask is a binary edge image with the same dimensions as its source.
// Pix holds one byte per pixel in row-major order: 255 for an edge, 0 otherwise.
type EdgeMask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewEdgeMask returns an all-zero mask.
func NewEdgeMask(width, height int) *EdgeMask {
	return &EdgeMask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// EdgeMaskFromGray binarizes a gray image: any non-zero pixel becomes 255.
func EdgeMaskFromGray(g *image.Gray) *EdgeMask {
	b := g.Bounds()
	m := NewEdgeMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if g.GrayAt(b.Min.X+x, b.Min.Y+y).Y != 0 {
				m.Pix[y*m.Width+x] = 255
			}
		}
	}
	return m
}

// InBounds reports whether (row, col) lies inside the mask.
func (m *EdgeMask) InBounds(row, col int) bool {
	return row >= 0 && row < m.Height && col >= 0 && col < m.Width
}

// IsEdge reports whether (row, col) is an edge pixel. Out-of-range
// coordinates are never edges.
func (m *EdgeMask) IsEdge(row, col int) bool {
	if !m.InBounds(row, col) {
		return false
	}
	return m.Pix[row*m.Width+col] != 0
}

// Set marks or clears an edge pixel. Out-of-range coordinates are ignored.
func (m *EdgeMask) Set(row, col int, edge bool) {
	if !m.InBounds(row, col) {
		return
	}
	if edge {
		m.Pix[row*m.Width+col] = 255
	} else {
		m.Pix[row*m.Width+col] = 0
	}
}

// Points returns every edge pixel in row-major order.
func (m *EdgeMask) Points() []Pixel {
	points := make([]Pixel, 0, m.Count())
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			if m.Pix[row*m.Width+col] != 0 {
				points = append(points, Pixel{Row: row, Col: col})
			}
		}
	}
	return points
}

// Count returns the number of edge pixels.
func (m *EdgeMask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Image returns the mask as a grayscale image (edges white).
func (m *EdgeMask) Image() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(g.Pix, m.Pix)
	return g
}

// EdgeResult holds the edge mask plus the intermediate images it was
// derived from.
type EdgeResult struct {
	// Mask is the binarized edge image.
	Mask *EdgeMask

	// Magnitude is the weighted gradient magnitude before thresholding.
	Magnitude *image.Gray

	// GradX and GradY are the absolute 8-bit directional responses.
	GradX *image.Gray
	GradY *image.Gray

	// Orientation holds atan2(gy, gx) per pixel in row-major order. It is nil
	// unless the extractor was asked for it.
	Orientation []float64

	// Threshold is the magnitude level that was actually applied.
	Threshold int

	// KernelSize is the blur kernel side that was actually applied.
	KernelSize int
}

// OrientationAt returns the gradient orientation at p, or 0 when orientation
// was not computed.
func (r *EdgeResult) OrientationAt(p Pixel) float64 {
	if r.Orientation == nil || !r.Mask.InBounds(p.Row, p.Col) {
		return 0
	}
	return r.Orientation[p.Row*r.Mask.Width+p.Col]
}

// EdgeExtractor turns an image into a binary edge mask.
//
// # Algorithm
//
//  1. Grayscale conversion (luminance).
//
//  2. Gaussian blur with an odd kernel whose side is KernelFraction of the
//     shorter image side (see BlurKernelSize).
//
//  3. Sobel derivatives along X and Y, taken as absolute 8-bit values and
//     combined as WeightX·|Gx| + WeightY·|Gy|, saturated at 255.
//
//  4. Binarization: magnitude >= threshold becomes 255, everything else 0.
//
// # Threshold Selection
//
// Threshold is the sensitivity knob. Too low admits noise as edges, too high
// drops real boundaries, and no single value suits every input. When
// ThresholdFraction is positive the threshold is instead taken relative to
// the strongest gradient in the image.
type EdgeExtractor struct {
	Filters           Filters
	KernelFraction    float64
	Sigma             float64
	WeightX           float64
	WeightY           float64
	Threshold         int
	ThresholdFraction float64

	// WithOrientation also fills EdgeResult.Orientation.
	WithOrientation bool
}

// NewEdgeExtractor returns an extractor with the default tuning.
func NewEdgeExtractor() *EdgeExtractor {
	return &EdgeExtractor{
		Filters:        BildFilters{},
		KernelFraction: 0.02,
		WeightX:        0.5,
		WeightY:        0.5,
		Threshold:      60,
	}
}

// BlurKernelSize derives an odd blur kernel side from the image dimensions.
// The candidate int(min(width, height)·fraction) is bumped to 1 when it is not
// positive and incremented when it is even.
func BlurKernelSize(width, height int, fraction float64) int {
	side := width
	if height < side {
		side = height
	}
	k := int(float64(side) * fraction)
	if k <= 0 {
		return 1
	}
	if k%2 == 0 {
		k++
	}
	return k
}

// Extract runs the edge pipeline over img. The only error is an empty image.
func (e *EdgeExtractor) Extract(img image.Image) (*EdgeResult, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("failed to extract edges: empty image")
	}
	filters := e.Filters
	if filters == nil {
		filters = BildFilters{}
	}

	gray := ToGray(img)
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()

	k := BlurKernelSize(width, height, e.KernelFraction)
	blurred := filters.Blur(gray, k, e.Sigma)

	gx := filters.Gradient(blurred, AxisX)
	gy := filters.Gradient(blurred, AxisY)

	absX := image.NewGray(image.Rect(0, 0, width, height))
	absY := image.NewGray(image.Rect(0, 0, width, height))
	magnitude := image.NewGray(image.Rect(0, 0, width, height))
	var orientation []float64
	if e.WithOrientation {
		orientation = make([]float64, width*height)
	}

	maxMag := uint8(0)
	for i := 0; i < width*height; i++ {
		ax := saturate(math.Abs(gx[i]))
		ay := saturate(math.Abs(gy[i]))
		absX.Pix[i] = ax
		absY.Pix[i] = ay

		m := saturate(e.WeightX*float64(ax) + e.WeightY*float64(ay))
		magnitude.Pix[i] = m
		if m > maxMag {
			maxMag = m
		}
		if orientation != nil {
			orientation[i] = math.Atan2(gy[i], gx[i])
		}
	}

	t := e.Threshold
	if e.ThresholdFraction > 0 {
		t = int(math.Ceil(e.ThresholdFraction * float64(maxMag)))
		if t < 1 {
			// A flat image has no maximum to be a fraction of.
			t = 1
		}
	}

	mask := EdgeMaskFromGray(filters.Threshold(magnitude, t, 255))

	return &EdgeResult{
		Mask:        mask,
		Magnitude:   magnitude,
		GradX:       absX,
		GradY:       absY,
		Orientation: orientation,
		Threshold:   t,
		KernelSize:  k,
	}, nil
}

// ToGray converts img to a zero-origin grayscale image. Gray inputs are
// copied as-is; everything else goes through luminance conversion.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return cloneGray(g)
	}
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(x, y, color.Gray{Y: nrgba.Pix[y*nrgba.Stride+x*4]})
		}
	}
	return out
}

// saturate rounds v into the 8-bit range.
func saturate(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
