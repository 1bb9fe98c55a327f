package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/monitoring"
)

// minPyramidSide stops the pyramid before levels become too small to hold a
// contour.
const minPyramidSide = 8

// PyramidRefined detects circles at several resolutions and merges the
// results from coarsest to finest.
//
// # Algorithm
//
//  1. Build a pyramid of successive halvings, up to Depth levels.
//
//  2. At every level, extract edges, group them into 8-connected contours,
//     fill holes, trace the outer boundary, and keep contours whose
//     circularity 4π·area/perimeter² reaches CircularityMin.
//
//  3. Fit the minimum enclosing circle of each kept boundary, natively when
//     the filter backend is an imaging.CircleFitter.
//
//  4. Starting at the coarsest level, upscale detections to the next finer
//     level and merge them with that level's detections: centers closer than
//     MergeDistance become one detection whose support is the sum of both.
//
// # Radius Estimate
//
// The reported radius is InitialRadius·ScaleFactor^level for the finest level
// a circle was seen at. It does not depend on the contour size; the fitted
// radius is kept separately in Circle.MeasuredRadius.
type PyramidRefined struct {
	Edges *imaging.EdgeExtractor

	Depth            int
	InitialRadius    float64
	ScaleFactor      float64
	CircularityMin   float64
	MinContourPixels int
	MergeDistance    float64
	MaxCircles       int

	Overlay OverlayOptions
}

var _ CircleDetector = (*PyramidRefined)(nil)

// NewPyramidRefined builds the pyramid strategy from cfg.
func NewPyramidRefined(cfg *config.DetectorConfig) (*PyramidRefined, error) {
	edges, err := newEdgeExtractor(cfg)
	if err != nil {
		return nil, err
	}
	overlay, err := newOverlayOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &PyramidRefined{
		Edges:            edges,
		Depth:            cfg.GetPyramidDepth(),
		InitialRadius:    cfg.GetPyramidInitialRadius(),
		ScaleFactor:      cfg.GetPyramidScaleFactor(),
		CircularityMin:   cfg.GetCircularityMin(),
		MinContourPixels: cfg.GetMinContourPixels(),
		MergeDistance:    cfg.GetMergeDistance(),
		MaxCircles:       cfg.GetMaxCircles(),
		Overlay:          overlay,
	}, nil
}

func (p *PyramidRefined) Name() string { return config.StrategyPyramid }

// scaleDetection is a candidate circle in the coordinates of one level.
type scaleDetection struct {
	x, y        float64
	measured    float64
	support     int
	circularity float64
	level       int
}

// buildPyramid returns img followed by successive halvings.
func buildPyramid(img image.Image, depth int, filters imaging.Filters) []image.Image {
	if depth < 1 {
		depth = 1
	}
	levels := []image.Image{img}
	for len(levels) < depth {
		b := levels[len(levels)-1].Bounds()
		if b.Dx()/2 < minPyramidSide || b.Dy()/2 < minPyramidSide {
			monitoring.Debugf("pyramid stops at %d levels: %dx%d is the smallest usable size", len(levels), b.Dx(), b.Dy())
			break
		}
		levels = append(levels, filters.Downsample(levels[len(levels)-1]))
	}
	return levels
}

func (p *PyramidRefined) Detect(img image.Image) (*Result, error) {
	runID := uuid.NewString()
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("failed to detect circles: empty image")
	}

	filters := p.Edges.Filters
	if filters == nil {
		filters = imaging.BildFilters{}
	}
	levels := buildPyramid(img, p.Depth, filters)
	fit := minEnclosingCircle
	if fitter, ok := filters.(imaging.CircleFitter); ok {
		fit = fitter.EnclosingCircle
	}

	perLevel := make([][]scaleDetection, len(levels))
	var fullMask *imaging.EdgeMask
	for i, level := range levels {
		edges, err := p.Edges.Extract(level)
		if err != nil {
			return nil, fmt.Errorf("failed to extract edges at pyramid level %d: %w", i, err)
		}
		if i == 0 {
			fullMask = edges.Mask
		}
		for _, c := range findContours(edges.Mask, p.MinContourPixels) {
			circ := c.Circularity()
			if circ < p.CircularityMin {
				continue
			}
			x, y, r := fit(c.Boundary)
			perLevel[i] = append(perLevel[i], scaleDetection{
				x: x, y: y, measured: r, support: 1, circularity: circ, level: i,
			})
		}
		monitoring.Debugf("run %s: pyramid level %d (%dx%d): %d circular contours",
			runID, i, level.Bounds().Dx(), level.Bounds().Dy(), len(perLevel[i]))
	}

	merged := perLevel[len(levels)-1]
	for i := len(levels) - 2; i >= 0; i-- {
		coarse, fine := levels[i+1].Bounds(), levels[i].Bounds()
		sx := float64(fine.Dx()) / float64(coarse.Dx())
		sy := float64(fine.Dy()) / float64(coarse.Dy())
		merged = mergeDetections(upscale(merged, sx, sy), perLevel[i], p.MergeDistance)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].support != merged[j].support {
			return merged[i].support > merged[j].support
		}
		return merged[i].circularity > merged[j].circularity
	})
	if p.MaxCircles > 0 && len(merged) > p.MaxCircles {
		merged = merged[:p.MaxCircles]
	}

	b := img.Bounds()
	circles := p.circles(merged, b.Dx(), b.Dy())

	return &Result{
		RunID:     runID,
		Strategy:  p.Name(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		EdgeCount: fullMask.Count(),
		Circles:   circles,
		Count:     len(circles),
		Edges:     fullMask,
		Overlay:   Overlay(img, circles, p.Overlay),
	}, nil
}

// EstimatedRadius is the per-level radius approximation.
func (p *PyramidRefined) EstimatedRadius(level int) int {
	return int(math.Round(p.InitialRadius * math.Pow(p.ScaleFactor, float64(level))))
}

func (p *PyramidRefined) circles(dets []scaleDetection, width, height int) []Circle {
	maxSupport := 0
	for _, d := range dets {
		maxSupport = max(maxSupport, d.support)
	}

	circles := make([]Circle, 0, len(dets))
	for _, d := range dets {
		r := p.EstimatedRadius(d.level)
		circles = append(circles, Circle{
			Center: Point{
				X: clampInt(int(math.Round(d.x)), 0, width-1),
				Y: clampInt(int(math.Round(d.y)), 0, height-1),
			},
			Radius:         r,
			Diameter:       2 * r,
			Votes:          float64(d.support),
			Confidence:     confidence(float64(d.support), float64(maxSupport)),
			MeasuredRadius: d.measured,
			Scale:          d.level,
		})
	}
	return circles
}

// upscale maps detections one level finer. Pixel centers map as
// (c+0.5)·s - 0.5.
func upscale(dets []scaleDetection, sx, sy float64) []scaleDetection {
	out := make([]scaleDetection, len(dets))
	for i, d := range dets {
		d.x = (d.x+0.5)*sx - 0.5
		d.y = (d.y+0.5)*sy - 0.5
		d.measured *= (sx + sy) / 2
		out[i] = d
	}
	return out
}

// mergeDetections folds upscaled coarse detections into the finer level. Each
// fine detection absorbs the nearest unmatched coarse detection within
// maxDist, keeping its own (more precise) geometry and summing support.
// Coarse detections with no partner are carried through unchanged.
func mergeDetections(coarse, fine []scaleDetection, maxDist float64) []scaleDetection {
	used := make([]bool, len(coarse))
	out := make([]scaleDetection, 0, len(coarse)+len(fine))

	for _, f := range fine {
		best, bestDist := -1, math.Inf(1)
		for j, c := range coarse {
			if used[j] {
				continue
			}
			d := math.Hypot(f.x-c.x, f.y-c.y)
			if d <= maxDist && d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			used[best] = true
			f.support += coarse[best].support
			f.circularity = math.Max(f.circularity, coarse[best].circularity)
		}
		out = append(out, f)
	}
	for j, c := range coarse {
		if !used[j] {
			out = append(out, c)
		}
	}
	return out
}
