package render

import (
	"fmt"
	"image"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ironsheep/hough-circles/internal/hough"
)

// heatmapColors is the number of palette steps used for accumulator plots.
const heatmapColors = 255

// planeGrid adapts one row-major accumulator slice to plotter.GridXYZ.
// Row 0 is drawn at the top, matching image orientation.
type planeGrid struct {
	rows, cols int
	z          []float64
}

func (g planeGrid) Dims() (c, r int)   { return g.cols, g.rows }
func (g planeGrid) Z(c, r int) float64 { return g.z[r*g.cols+c] }
func (g planeGrid) X(c int) float64    { return float64(c) }
func (g planeGrid) Y(r int) float64    { return float64(g.rows - 1 - r) }

// AccumulatorHeatmap renders radius slice k of acc as a width×height pixel
// heatmap. For a 2D accumulator k is 0.
func AccumulatorHeatmap(acc *hough.Accumulator, k int, width, height int) (image.Image, error) {
	if acc == nil || acc.Rows == 0 || acc.Cols == 0 {
		return nil, fmt.Errorf("failed to plot accumulator: empty accumulator")
	}
	if k < 0 || k >= acc.Radii {
		return nil, fmt.Errorf("failed to plot accumulator: radius index %d outside [0, %d)", k, acc.Radii)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("failed to plot accumulator: invalid size %dx%d", width, height)
	}

	cm := moreland.ExtendedBlackBody()
	cm.SetMin(0)
	cm.SetMax(1)

	grid := planeGrid{rows: acc.Rows, cols: acc.Cols, z: acc.Plane(k)}
	hm := plotter.NewHeatMap(grid, cm.Palette(heatmapColors))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	if acc.Is3D() {
		p.Title.Text = fmt.Sprintf("Accumulator, radius %d", k)
	} else {
		p.Title.Text = "Accumulator"
	}
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row (flipped)"
	p.Add(hm)

	// At 72 DPI one point is one pixel.
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(width), vg.Length(height)),
		vgimg.UseDPI(72),
	)
	p.Draw(draw.New(c))
	return c.Image(), nil
}

// BestRadiusSlice returns the radius index holding the accumulator maximum,
// the most useful slice to look at first.
func BestRadiusSlice(acc *hough.Accumulator) int {
	best, bestValue := 0, 0.0
	for i, v := range acc.Cells {
		if v > bestValue {
			best, bestValue = i%acc.Radii, v
		}
	}
	return best
}
