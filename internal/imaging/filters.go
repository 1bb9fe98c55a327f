package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// Axis selects the direction of a gradient operator.
type Axis int

const (
	// AxisX is the horizontal derivative (responds to vertical edges).
	AxisX Axis = iota
	// AxisY is the vertical derivative (responds to horizontal edges).
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// Filters is the set of standard filter primitives the edge pipeline is built
// from. Implementations are expected to be numerically correct; callers only
// decide how the outputs are combined.
type Filters interface {
	// Blur smooths img with an odd kernelSize × kernelSize Gaussian. A kernel
	// size of 1 returns an unmodified copy. sigma <= 0 derives sigma from the
	// kernel size.
	Blur(img *image.Gray, kernelSize int, sigma float64) *image.Gray

	// Gradient returns the signed 3×3 Sobel response along axis, row-major,
	// saturated to [-255, 255]. Borders replicate the edge pixels.
	Gradient(img *image.Gray, axis Axis) []float64

	// Threshold maps every pixel >= t to maxVal and everything else to 0.
	Threshold(img *image.Gray, t int, maxVal uint8) *image.Gray

	// Downsample halves both image dimensions (minimum 1 pixel).
	Downsample(img image.Image) image.Image
}

// CircleFitter is implemented by backends that fit a minimum enclosing circle
// natively. The center is returned as (col, row).
type CircleFitter interface {
	EnclosingCircle(points []Pixel) (x, y, r float64)
}

// filterBackends maps backend names to constructors. Optional backends
// register themselves from build-tagged files.
var filterBackends = map[string]func() Filters{
	"bild": func() Filters { return BildFilters{} },
}

func registerFilters(name string, ctor func() Filters) {
	filterBackends[name] = ctor
}

// FiltersByName returns the named filter backend. An empty name selects bild.
func FiltersByName(name string) (Filters, error) {
	if name == "" {
		name = "bild"
	}
	ctor, ok := filterBackends[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter backend %q (available: %v)", name, FilterBackends())
	}
	return ctor(), nil
}

// FilterBackends lists the backends compiled into this binary.
func FilterBackends() []string {
	names := make([]string, 0, len(filterBackends))
	for name := range filterBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	sobelX = []float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}
	sobelY = []float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}
)

// BildFilters implements Filters in pure Go on top of bild's convolution
// package, with disintegration/imaging for resampling.
type BildFilters struct{}

var _ Filters = BildFilters{}

// Blur applies a separable Gaussian: one horizontal and one vertical pass.
func (BildFilters) Blur(img *image.Gray, kernelSize int, sigma float64) *image.Gray {
	if kernelSize <= 1 {
		return cloneGray(img)
	}
	if kernelSize%2 == 0 {
		kernelSize++
	}
	weights := gaussianWeights(kernelSize, sigma)
	opts := &convolution.Options{Wrap: false, KeepAlpha: true}

	horizontal := &convolution.Kernel{Matrix: weights, Width: kernelSize, Height: 1}
	vertical := &convolution.Kernel{Matrix: weights, Width: 1, Height: kernelSize}

	pass := convolution.Convolve(img, horizontal, opts)
	pass = convolution.Convolve(pass, vertical, opts)
	return grayFromRGBA(pass)
}

// Gradient convolves with the Sobel kernel and its negation. bild clamps
// results to [0, 255], so the two passes hold the positive and negative
// halves of the signed response.
func (BildFilters) Gradient(img *image.Gray, axis Axis) []float64 {
	kernel := sobelX
	if axis == AxisY {
		kernel = sobelY
	}
	negated := make([]float64, len(kernel))
	for i, v := range kernel {
		negated[i] = -v
	}
	opts := &convolution.Options{Wrap: false, KeepAlpha: true}

	pos := convolution.Convolve(img, &convolution.Kernel{Matrix: kernel, Width: 3, Height: 3}, opts)
	neg := convolution.Convolve(img, &convolution.Kernel{Matrix: negated, Width: 3, Height: 3}, opts)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pi := y*pos.Stride + x*4
			ni := y*neg.Stride + x*4
			out[y*w+x] = float64(pos.Pix[pi]) - float64(neg.Pix[ni])
		}
	}
	return out
}

// Threshold compares raw gray levels. bild's segment.Threshold ranks pixels
// by a float luminance that it truncates, which can drop a pixel sitting
// exactly at the level.
func (BildFilters) Threshold(img *image.Gray, t int, maxVal uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if t > 255 {
		return out
	}
	if t < 0 {
		t = 0
	}
	level := uint8(t)
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x] >= level {
				out.Pix[y*out.Stride+x] = maxVal
			}
		}
	}
	return out
}

// Downsample uses a box filter, the closest resampler to a pyramid reduce.
func (BildFilters) Downsample(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx()/2, b.Dy()/2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Box)
}

// gaussianWeights returns a normalized 1-D Gaussian of the given odd size.
// sigma <= 0 follows the usual derivation from the kernel size:
// 0.3*((k-1)*0.5 - 1) + 0.8.
func gaussianWeights(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	half := size / 2
	weights := make([]float64, size)
	var sum float64
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// cloneGray copies img into a new zero-origin Gray image.
func cloneGray(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}

// grayFromRGBA takes the red channel of a convolution result. Inputs are gray,
// so all three channels carry the same value.
func grayFromRGBA(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = img.Pix[y*img.Stride+x*4]
		}
	}
	return out
}
