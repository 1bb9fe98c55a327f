//go:build gocv

package imaging

import (
	"image"

	"gocv.io/x/gocv"
)

// GocvFilters implements Filters with OpenCV through gocv. It is only built
// with -tags gocv since it needs the native OpenCV libraries.
type GocvFilters struct{}

var _ Filters = GocvFilters{}

func init() {
	registerFilters("gocv", func() Filters { return GocvFilters{} })
}

func grayToMat(img *image.Gray) (gocv.Mat, error) {
	b := img.Bounds()
	g := img
	if b.Min != (image.Point{}) || img.Stride != b.Dx() {
		g = cloneGray(img)
	}
	return gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8U, g.Pix)
}

func matToGray(m gocv.Mat) *image.Gray {
	rows, cols := m.Rows(), m.Cols()
	out := image.NewGray(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Pix[y*out.Stride+x] = m.GetUCharAt(y, x)
		}
	}
	return out
}

func (GocvFilters) Blur(img *image.Gray, kernelSize int, sigma float64) *image.Gray {
	if kernelSize <= 1 {
		return cloneGray(img)
	}
	if kernelSize%2 == 0 {
		kernelSize++
	}
	src, err := grayToMat(img)
	if err != nil {
		return BildFilters{}.Blur(img, kernelSize, sigma)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Point{X: kernelSize, Y: kernelSize}, sigma, sigma, gocv.BorderReplicate)
	return matToGray(dst)
}

func (GocvFilters) Gradient(img *image.Gray, axis Axis) []float64 {
	src, err := grayToMat(img)
	if err != nil {
		return BildFilters{}.Gradient(img, axis)
	}
	defer src.Close()

	dx, dy := 1, 0
	if axis == AxisY {
		dx, dy = 0, 1
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Sobel(src, &dst, gocv.MatTypeCV16S, dx, dy, 3, 1, 0, gocv.BorderReplicate)

	rows, cols := dst.Rows(), dst.Cols()
	out := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := float64(dst.GetShortAt(y, x))
			if v > 255 {
				v = 255
			} else if v < -255 {
				v = -255
			}
			out[y*cols+x] = v
		}
	}
	return out
}

// Threshold uses THRESH_BINARY, which keeps values strictly above the level,
// so the level is t-1 for integer inputs.
func (GocvFilters) Threshold(img *image.Gray, t int, maxVal uint8) *image.Gray {
	b := img.Bounds()
	if t > 255 {
		return image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	src, err := grayToMat(img)
	if err != nil {
		return BildFilters{}.Threshold(img, t, maxVal)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Threshold(src, &dst, float32(t-1), float32(maxVal), gocv.ThresholdBinary)
	return matToGray(dst)
}

func (GocvFilters) Downsample(img image.Image) image.Image {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return BildFilters{}.Downsample(img)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.PyrDown(src, &dst, image.Point{}, gocv.BorderDefault)

	out, err := dst.ToImage()
	if err != nil {
		return BildFilters{}.Downsample(img)
	}
	return out
}

var _ CircleFitter = GocvFilters{}

// EnclosingCircle uses cv::minEnclosingCircle.
func (GocvFilters) EnclosingCircle(points []Pixel) (x, y, r float64) {
	if len(points) == 0 {
		return 0, 0, 0
	}
	pts := make([]image.Point, len(points))
	for i, p := range points {
		pts[i] = image.Pt(p.Col, p.Row)
	}
	pv := gocv.NewPointVectorFromPoints(pts)
	defer pv.Close()

	cx, cy, radius := gocv.MinEnclosingCircle(pv)
	return float64(cx), float64(cy), float64(radius)
}
