package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/hough"
	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/monitoring"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Circle is a detected circle.
type Circle struct {
	// Center is the circle center. X is the accumulator column, Y the row.
	Center Point `json:"center"`

	// Radius is the reported radius in pixels.
	Radius int `json:"radius"`

	// Diameter is 2 × Radius for convenience.
	Diameter int `json:"diameter"`

	// Votes is the accumulator value of the peak, after any normalization.
	// For pyramid detections it is the number of scales that agreed.
	Votes float64 `json:"votes"`

	// Confidence is Votes relative to the strongest detection, in [0, 1].
	Confidence float64 `json:"confidence"`

	// MeasuredRadius is the radius of the minimum enclosing circle of the
	// contour, in full-resolution pixels. Only the pyramid strategy sets it.
	MeasuredRadius float64 `json:"measured_radius,omitempty"`

	// Scale is the finest pyramid level the circle was seen at.
	Scale int `json:"scale,omitempty"`
}

// Result is everything a detection run produced.
type Result struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	// EdgeCount is the number of edge pixels that were allowed to vote.
	EdgeCount int `json:"edge_count"`

	Peaks   []hough.Peak `json:"peaks,omitempty"`
	Circles []Circle     `json:"circles"`
	Count   int          `json:"count"`

	// Edges is the full-resolution edge mask.
	Edges *imaging.EdgeMask `json:"-"`

	// Accumulator is the raw vote grid; nil for the pyramid strategy.
	Accumulator *hough.Accumulator `json:"-"`

	// Scored is the grid peaks were taken from (weighted and/or normalized).
	Scored *hough.Accumulator `json:"-"`

	// Orientation is the gradient orientation per pixel, row-major. Only the
	// gradient strategy computes it.
	Orientation []float64 `json:"-"`

	// Overlay is the input with detections drawn on top.
	Overlay image.Image `json:"-"`
}

// Translate shifts every detection by (dx, dy). It is used when detection ran
// on a crop and the results must be reported in full-image coordinates.
func (r *Result) Translate(dx, dy int) {
	for i := range r.Circles {
		r.Circles[i].Center.X += dx
		r.Circles[i].Center.Y += dy
	}
	for i := range r.Peaks {
		r.Peaks[i].Col += dx
		r.Peaks[i].Row += dy
	}
}

// CircleDetector is one detection strategy.
type CircleDetector interface {
	Name() string
	Detect(img image.Image) (*Result, error)
}

// NewDetector builds the strategy named by cfg.
func NewDetector(cfg *config.DetectorConfig) (CircleDetector, error) {
	if cfg == nil {
		cfg = config.EmptyDetectorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.GetStrategy() {
	case config.StrategyDirect:
		p, err := NewPipeline(cfg)
		if err != nil {
			return nil, err
		}
		return &DirectVoting{Pipeline: p}, nil
	case config.StrategyGradient:
		p, err := NewPipeline(cfg)
		if err != nil {
			return nil, err
		}
		return &GradientFiltered{Pipeline: p}, nil
	case config.StrategyPyramid:
		return NewPyramidRefined(cfg)
	default:
		return nil, &config.ParameterError{Field: "strategy", Value: cfg.GetStrategy(), Reason: "must be direct, gradient or pyramid"}
	}
}

// Pipeline is the shared edge → vote → peak → circle chain used by the
// voting strategies.
type Pipeline struct {
	Edges *imaging.EdgeExtractor

	// Volumetric selects the (row, col, radius) accumulator; otherwise the 2D
	// distance accumulator is used.
	Volumetric bool

	Distance hough.DistanceVoter
	// MaxDistanceFraction scales the image diagonal into Distance.MaxDistance.
	MaxDistanceFraction float64

	Hough hough.HoughVoter

	Normalize       bool
	RadiusWeighting bool
	Peaks           hough.PeakFinder
	MaxCircles      int

	// Radius2D fixes the reported radius for 2D peaks; 0 derives it from the
	// surrounding edge pixels.
	Radius2D int

	Overlay OverlayOptions
}

// NewPipeline resolves cfg into a ready pipeline.
func NewPipeline(cfg *config.DetectorConfig) (*Pipeline, error) {
	edges, err := newEdgeExtractor(cfg)
	if err != nil {
		return nil, err
	}
	overlay, err := newOverlayOptions(cfg)
	if err != nil {
		return nil, err
	}

	weight := hough.WeightConstant
	switch cfg.GetVoteWeight() {
	case config.WeightDistance:
		weight = hough.WeightDistance
	case config.WeightMagnitude:
		weight = hough.WeightMagnitude
	}
	projection := hough.ProjectionCircle
	if cfg.GetProjection() == config.ProjectionDiagonal {
		projection = hough.ProjectionDiagonal
	}

	return &Pipeline{
		Edges:               edges,
		Volumetric:          cfg.GetAccumulatorMode() == config.Mode3D,
		Distance:            hough.DistanceVoter{Weight: weight, Workers: cfg.GetWorkers()},
		MaxDistanceFraction: cfg.GetMaxDistanceFraction(),
		Hough: hough.HoughVoter{
			MinRadius:  cfg.GetMinRadius(),
			MaxRadius:  cfg.GetMaxRadius(),
			Projection: projection,
			Workers:    cfg.GetWorkers(),
			Weight:     weight,
		},
		Normalize:       cfg.GetNormalize(),
		RadiusWeighting: cfg.GetRadiusWeighting(),
		Peaks: hough.PeakFinder{
			NeighborCount: cfg.GetNeighborCount(),
			MinValue:      cfg.GetMinPeakValue(),
		},
		MaxCircles: cfg.GetMaxCircles(),
		Radius2D:   cfg.GetRadius2D(),
		Overlay:    overlay,
	}, nil
}

// ExtractEdges runs only the edge stage configured by cfg.
func ExtractEdges(cfg *config.DetectorConfig, img image.Image) (*imaging.EdgeResult, error) {
	if cfg == nil {
		cfg = config.EmptyDetectorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	extractor, err := newEdgeExtractor(cfg)
	if err != nil {
		return nil, err
	}
	edges, err := extractor.Extract(img)
	if err != nil {
		return nil, fmt.Errorf("failed to extract edges: %w", err)
	}
	return edges, nil
}

func newEdgeExtractor(cfg *config.DetectorConfig) (*imaging.EdgeExtractor, error) {
	filters, err := imaging.FiltersByName(cfg.GetFilterBackend())
	if err != nil {
		return nil, &config.ParameterError{Field: "filter_backend", Value: cfg.GetFilterBackend(), Reason: err.Error()}
	}
	return &imaging.EdgeExtractor{
		Filters:           filters,
		KernelFraction:    cfg.GetBlurKernelFraction(),
		Sigma:             cfg.GetBlurSigma(),
		WeightX:           cfg.GetGradientWeightX(),
		WeightY:           cfg.GetGradientWeightY(),
		Threshold:         cfg.GetEdgeThreshold(),
		ThresholdFraction: cfg.GetEdgeThresholdFraction(),
	}, nil
}

func newOverlayOptions(cfg *config.DetectorConfig) (OverlayOptions, error) {
	low, err := colorful.Hex(cfg.GetLowColor())
	if err != nil {
		return OverlayOptions{}, &config.ParameterError{Field: "low_color", Value: cfg.GetLowColor(), Reason: "must be #RRGGBB"}
	}
	high, err := colorful.Hex(cfg.GetHighColor())
	if err != nil {
		return OverlayOptions{}, &config.ParameterError{Field: "high_color", Value: cfg.GetHighColor(), Reason: "must be #RRGGBB"}
	}
	return OverlayOptions{
		Markers: cfg.GetOverlayStyle() == config.OverlayMarker,
		Low:     low,
		High:    high,
		Labels:  cfg.GetOverlayLabels(),
	}, nil
}

// EdgeFilter decides whether an edge pixel may vote. theta is the gradient
// orientation at the pixel in radians.
type EdgeFilter func(p imaging.Pixel, theta float64) bool

// Run executes the pipeline. withOrientation computes the per-pixel gradient
// orientation, which a gate requires. A nil gate lets every edge pixel vote.
func (p *Pipeline) Run(strategy string, img image.Image, withOrientation bool, gate EdgeFilter) (*Result, error) {
	runID := uuid.NewString()

	extractor := *p.Edges
	extractor.WithOrientation = withOrientation || gate != nil
	edges, err := extractor.Extract(img)
	if err != nil {
		return nil, fmt.Errorf("failed to detect circles: %w", err)
	}

	width, height := edges.Mask.Width, edges.Mask.Height
	points := edges.Mask.Points()
	if gate != nil {
		kept := points[:0:0]
		for _, pt := range points {
			if gate(pt, edges.OrientationAt(pt)) {
				kept = append(kept, pt)
			}
		}
		monitoring.Debugf("run %s: gate kept %d of %d edge pixels", runID, len(kept), len(points))
		points = kept
	}

	var acc *hough.Accumulator
	maxDistance := p.MaxDistanceFraction * math.Hypot(float64(width), float64(height))
	if p.Volumetric {
		voter := p.Hough
		voter.Magnitude = edges.Magnitude
		acc = voter.Build(points, height, width)
	} else {
		voter := p.Distance
		voter.MaxDistance = maxDistance
		voter.Magnitude = edges.Magnitude
		acc = voter.Build(points, height, width)
	}
	if monitoring.DebugEnabled() {
		monitoring.Debugf("run %s: %d cells, %.0f votes, max %.1f",
			runID, len(acc.Cells), acc.Sum(), acc.Max())
	}

	scored := acc
	if p.RadiusWeighting {
		scored = hough.RadiusWeighted(scored)
	}
	if p.Normalize {
		scored = hough.Normalize(scored, 0, 255)
	}

	peaks := hough.Strongest(p.Peaks.Find(scored), p.MaxCircles)
	maxValue := scored.Max()

	var circles []Circle
	if p.Volumetric {
		circles = Reconstruct3D(peaks, maxValue, width, height)
	} else {
		circles = Reconstruct2D(peaks, points, p.Radius2D, maxDistance, maxValue, width, height)
	}

	monitoring.Debugf("run %s: strategy=%s %dx%d edges=%d peaks=%d",
		runID, strategy, width, height, len(points), len(peaks))

	return &Result{
		RunID:       runID,
		Strategy:    strategy,
		Width:       width,
		Height:      height,
		EdgeCount:   len(points),
		Peaks:       peaks,
		Circles:     circles,
		Count:       len(circles),
		Edges:       edges.Mask,
		Accumulator: acc,
		Scored:      scored,
		Orientation: edges.Orientation,
		Overlay:     Overlay(img, circles, p.Overlay),
	}, nil
}
