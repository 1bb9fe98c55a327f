package detection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/hough-circles/internal/hough"
	"github.com/ironsheep/hough-circles/internal/imaging"
)

// peakCenter is the single place accumulator (row, col) becomes image (x, y).
// The result is clamped into a width×height frame.
func peakCenter(p hough.Peak, width, height int) Point {
	return Point{
		X: clampInt(p.Col, 0, width-1),
		Y: clampInt(p.Row, 0, height-1),
	}
}

func confidence(value, maxValue float64) float64 {
	if maxValue <= 0 {
		return 0
	}
	return math.Min(math.Max(value/maxValue, 0), 1)
}

// Reconstruct3D turns (row, col, radius) peaks into circles.
func Reconstruct3D(peaks []hough.Peak, maxValue float64, width, height int) []Circle {
	circles := make([]Circle, 0, len(peaks))
	for _, p := range peaks {
		r := p.Radius
		if r < 0 {
			r = 0
		}
		circles = append(circles, Circle{
			Center:     peakCenter(p, width, height),
			Radius:     r,
			Diameter:   2 * r,
			Votes:      p.Value,
			Confidence: confidence(p.Value, maxValue),
		})
	}
	return circles
}

// Reconstruct2D turns (row, col) peaks into circles. A positive fixedRadius
// is used as-is; otherwise the radius is the median distance from the peak to
// the edge pixels closer than maxDistance.
func Reconstruct2D(peaks []hough.Peak, edges []imaging.Pixel, fixedRadius int, maxDistance, maxValue float64, width, height int) []Circle {
	circles := make([]Circle, 0, len(peaks))
	for _, p := range peaks {
		r := fixedRadius
		if r <= 0 {
			r = medianEdgeDistance(p, edges, maxDistance)
		}
		circles = append(circles, Circle{
			Center:     peakCenter(p, width, height),
			Radius:     r,
			Diameter:   2 * r,
			Votes:      p.Value,
			Confidence: confidence(p.Value, maxValue),
		})
	}
	return circles
}

func medianEdgeDistance(p hough.Peak, edges []imaging.Pixel, maxDistance float64) int {
	var dists []float64
	for _, e := range edges {
		d := math.Hypot(float64(e.Row-p.Row), float64(e.Col-p.Col))
		if d > 0 && d < maxDistance {
			dists = append(dists, d)
		}
	}
	if len(dists) == 0 {
		return 0
	}
	sort.Float64s(dists)
	return int(math.Round(stat.Quantile(0.5, stat.Empirical, dists, nil)))
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
