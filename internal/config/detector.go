// Package config loads and validates detector tuning parameters.
//
// Parameters live in a JSON file whose fields are all optional. Omitted fields
// fall back to the defaults carried by the Get* accessors, so a partial file (or
// no file at all) is always safe to use.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical detector defaults file.
const DefaultConfigPath = "config/detector.defaults.json"

// Strategy names accepted by the "strategy" field.
const (
	StrategyDirect   = "direct"
	StrategyGradient = "gradient"
	StrategyPyramid  = "pyramid"
)

// Accumulator modes accepted by the "accumulator_mode" field.
const (
	Mode2D = "2d"
	Mode3D = "3d"
)

// Vote weights accepted by the "vote_weight" field.
const (
	WeightConstant  = "constant"
	WeightDistance  = "distance"
	WeightMagnitude = "magnitude"
)

// Projections accepted by the "projection" field.
const (
	ProjectionCircle   = "circle"
	ProjectionDiagonal = "diagonal"
)

// Overlay styles accepted by the "overlay_style" field.
const (
	OverlayOutline = "outline"
	OverlayMarker  = "marker"
)

// ParameterError reports a configuration value that cannot be interpreted.
//
// Geometric values that merely exceed the image (a max radius above the
// diagonal, a window wider than the accumulator) are not ParameterErrors; the
// pipeline clamps those at run time.
type ParameterError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

// DetectorConfig is the root configuration for a detection run.
type DetectorConfig struct {
	Strategy      *string `json:"strategy,omitempty"`
	FilterBackend *string `json:"filter_backend,omitempty"`

	// Edge extraction
	BlurKernelFraction    *float64 `json:"blur_kernel_fraction,omitempty"`
	BlurSigma             *float64 `json:"blur_sigma,omitempty"`
	GradientWeightX       *float64 `json:"gradient_weight_x,omitempty"`
	GradientWeightY       *float64 `json:"gradient_weight_y,omitempty"`
	EdgeThreshold         *int     `json:"edge_threshold,omitempty"`
	EdgeThresholdFraction *float64 `json:"edge_threshold_fraction,omitempty"`

	// Accumulator
	AccumulatorMode     *string  `json:"accumulator_mode,omitempty"`
	MinRadius           *int     `json:"min_radius,omitempty"`
	MaxRadius           *int     `json:"max_radius,omitempty"`
	MaxDistanceFraction *float64 `json:"max_distance_fraction,omitempty"`
	VoteWeight          *string  `json:"vote_weight,omitempty"`
	Projection          *string  `json:"projection,omitempty"`
	Workers             *int     `json:"workers,omitempty"`

	// Normalization and peaks
	Normalize       *bool    `json:"normalize,omitempty"`
	RadiusWeighting *bool    `json:"radius_weighting,omitempty"`
	NeighborCount   *int     `json:"neighbor_count,omitempty"`
	MinPeakValue    *float64 `json:"min_peak_value,omitempty"`
	MaxCircles      *int     `json:"max_circles,omitempty"`
	Radius2D        *int     `json:"radius_2d,omitempty"`

	// Pyramid strategy
	PyramidDepth         *int     `json:"pyramid_depth,omitempty"`
	PyramidInitialRadius *float64 `json:"pyramid_initial_radius,omitempty"`
	PyramidScaleFactor   *float64 `json:"pyramid_scale_factor,omitempty"`
	CircularityMin       *float64 `json:"circularity_min,omitempty"`
	MinContourPixels     *int     `json:"min_contour_pixels,omitempty"`
	MergeDistance        *float64 `json:"merge_distance,omitempty"`

	// Overlay
	OverlayStyle  *string `json:"overlay_style,omitempty"`
	LowColor      *string `json:"low_color,omitempty"`
	HighColor     *string `json:"high_color,omitempty"`
	OverlayLabels *bool   `json:"overlay_labels,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDetectorConfig returns a DetectorConfig with all fields set to nil.
// Every accessor then reports its built-in default.
func EmptyDetectorConfig() *DetectorConfig {
	return &DetectorConfig{}
}

// LoadDetectorConfig loads a DetectorConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults.
func LoadDetectorConfig(path string) (*DetectorConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDetectorConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Merge copies every non-nil field of other over c. It is used to layer
// command-line or per-request overrides on top of a file config.
func (c *DetectorConfig) Merge(other *DetectorConfig) {
	if other == nil {
		return
	}
	data, err := json.Marshal(other)
	if err != nil {
		return
	}
	// omitempty drops nil pointers, so only set fields overwrite c.
	_ = json.Unmarshal(data, c)
}

// Validate reports the first field that cannot be interpreted.
func (c *DetectorConfig) Validate() error {
	if c.Strategy != nil {
		switch strings.ToLower(*c.Strategy) {
		case StrategyDirect, StrategyGradient, StrategyPyramid:
		default:
			return &ParameterError{Field: "strategy", Value: *c.Strategy, Reason: "must be direct, gradient or pyramid"}
		}
	}
	if c.AccumulatorMode != nil {
		switch strings.ToLower(*c.AccumulatorMode) {
		case Mode2D, Mode3D:
		default:
			return &ParameterError{Field: "accumulator_mode", Value: *c.AccumulatorMode, Reason: "must be 2d or 3d"}
		}
	}
	if c.VoteWeight != nil {
		switch strings.ToLower(*c.VoteWeight) {
		case WeightConstant, WeightDistance, WeightMagnitude:
		default:
			return &ParameterError{Field: "vote_weight", Value: *c.VoteWeight, Reason: "must be constant, distance or magnitude"}
		}
	}
	if c.Projection != nil {
		switch strings.ToLower(*c.Projection) {
		case ProjectionCircle, ProjectionDiagonal:
		default:
			return &ParameterError{Field: "projection", Value: *c.Projection, Reason: "must be circle or diagonal"}
		}
	}
	if c.OverlayStyle != nil {
		switch strings.ToLower(*c.OverlayStyle) {
		case OverlayOutline, OverlayMarker:
		default:
			return &ParameterError{Field: "overlay_style", Value: *c.OverlayStyle, Reason: "must be outline or marker"}
		}
	}

	if c.BlurKernelFraction != nil && (*c.BlurKernelFraction < 0 || *c.BlurKernelFraction > 1) {
		return &ParameterError{Field: "blur_kernel_fraction", Value: *c.BlurKernelFraction, Reason: "must be within [0, 1]"}
	}
	if c.BlurSigma != nil && *c.BlurSigma < 0 {
		return &ParameterError{Field: "blur_sigma", Value: *c.BlurSigma, Reason: "must be >= 0"}
	}
	if c.GradientWeightX != nil && *c.GradientWeightX < 0 {
		return &ParameterError{Field: "gradient_weight_x", Value: *c.GradientWeightX, Reason: "must be >= 0"}
	}
	if c.GradientWeightY != nil && *c.GradientWeightY < 0 {
		return &ParameterError{Field: "gradient_weight_y", Value: *c.GradientWeightY, Reason: "must be >= 0"}
	}
	if c.EdgeThreshold != nil && *c.EdgeThreshold < 0 {
		return &ParameterError{Field: "edge_threshold", Value: *c.EdgeThreshold, Reason: "must be >= 0"}
	}
	if c.EdgeThresholdFraction != nil && (*c.EdgeThresholdFraction < 0 || *c.EdgeThresholdFraction > 1) {
		return &ParameterError{Field: "edge_threshold_fraction", Value: *c.EdgeThresholdFraction, Reason: "must be within [0, 1]"}
	}
	if c.MinRadius != nil && *c.MinRadius < 0 {
		return &ParameterError{Field: "min_radius", Value: *c.MinRadius, Reason: "must be >= 0"}
	}
	if c.MaxRadius != nil && *c.MaxRadius < 0 {
		return &ParameterError{Field: "max_radius", Value: *c.MaxRadius, Reason: "must be >= 0 (0 selects half the shorter side)"}
	}
	if c.MinRadius != nil && c.MaxRadius != nil && *c.MaxRadius > 0 && *c.MinRadius >= *c.MaxRadius {
		return &ParameterError{Field: "min_radius", Value: *c.MinRadius, Reason: "must be below max_radius"}
	}
	if c.MaxDistanceFraction != nil && (*c.MaxDistanceFraction <= 0 || *c.MaxDistanceFraction > 1) {
		return &ParameterError{Field: "max_distance_fraction", Value: *c.MaxDistanceFraction, Reason: "must be within (0, 1]"}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return &ParameterError{Field: "workers", Value: *c.Workers, Reason: "must be >= 0"}
	}
	if c.NeighborCount != nil && *c.NeighborCount < 0 {
		return &ParameterError{Field: "neighbor_count", Value: *c.NeighborCount, Reason: "must be >= 0"}
	}
	if c.MaxCircles != nil && *c.MaxCircles < 0 {
		return &ParameterError{Field: "max_circles", Value: *c.MaxCircles, Reason: "must be >= 0 (0 keeps every peak)"}
	}
	if c.Radius2D != nil && *c.Radius2D < 0 {
		return &ParameterError{Field: "radius_2d", Value: *c.Radius2D, Reason: "must be >= 0"}
	}
	if c.PyramidDepth != nil && *c.PyramidDepth < 0 {
		return &ParameterError{Field: "pyramid_depth", Value: *c.PyramidDepth, Reason: "must be >= 0"}
	}
	if c.PyramidInitialRadius != nil && *c.PyramidInitialRadius < 0 {
		return &ParameterError{Field: "pyramid_initial_radius", Value: *c.PyramidInitialRadius, Reason: "must be >= 0"}
	}
	if c.PyramidScaleFactor != nil && *c.PyramidScaleFactor <= 0 {
		return &ParameterError{Field: "pyramid_scale_factor", Value: *c.PyramidScaleFactor, Reason: "must be > 0"}
	}
	if c.CircularityMin != nil && (*c.CircularityMin < 0 || *c.CircularityMin > 1) {
		return &ParameterError{Field: "circularity_min", Value: *c.CircularityMin, Reason: "must be within [0, 1]"}
	}
	if c.MinContourPixels != nil && *c.MinContourPixels < 0 {
		return &ParameterError{Field: "min_contour_pixels", Value: *c.MinContourPixels, Reason: "must be >= 0"}
	}
	if c.MergeDistance != nil && *c.MergeDistance < 0 {
		return &ParameterError{Field: "merge_distance", Value: *c.MergeDistance, Reason: "must be >= 0"}
	}
	return nil
}

// GetStrategy returns the detection strategy name (default: direct).
func (c *DetectorConfig) GetStrategy() string {
	if c.Strategy == nil {
		return StrategyDirect
	}
	return strings.ToLower(*c.Strategy)
}

// GetFilterBackend returns the filter primitive backend (default: bild).
// Availability of optional backends is checked when the detector is built.
func (c *DetectorConfig) GetFilterBackend() string {
	if c.FilterBackend == nil || *c.FilterBackend == "" {
		return "bild"
	}
	return strings.ToLower(*c.FilterBackend)
}

// GetBlurKernelFraction returns the blur kernel side as a fraction of the
// shorter image side (default: 0.02).
func (c *DetectorConfig) GetBlurKernelFraction() float64 {
	if c.BlurKernelFraction == nil {
		return 0.02
	}
	return *c.BlurKernelFraction
}

// GetBlurSigma returns the blur sigma; 0 derives it from the kernel size.
func (c *DetectorConfig) GetBlurSigma() float64 {
	if c.BlurSigma == nil {
		return 0
	}
	return *c.BlurSigma
}

func (c *DetectorConfig) GetGradientWeightX() float64 {
	if c.GradientWeightX == nil {
		return 0.5
	}
	return *c.GradientWeightX
}

func (c *DetectorConfig) GetGradientWeightY() float64 {
	if c.GradientWeightY == nil {
		return 0.5
	}
	return *c.GradientWeightY
}

// GetEdgeThreshold returns the absolute magnitude threshold (default: 60).
func (c *DetectorConfig) GetEdgeThreshold() int {
	if c.EdgeThreshold == nil {
		return 60
	}
	return *c.EdgeThreshold
}

// GetEdgeThresholdFraction returns the relative threshold; 0 disables it.
func (c *DetectorConfig) GetEdgeThresholdFraction() float64 {
	if c.EdgeThresholdFraction == nil {
		return 0
	}
	return *c.EdgeThresholdFraction
}

func (c *DetectorConfig) GetAccumulatorMode() string {
	if c.AccumulatorMode == nil {
		return Mode3D
	}
	return strings.ToLower(*c.AccumulatorMode)
}

func (c *DetectorConfig) GetMinRadius() int {
	if c.MinRadius == nil {
		return 0
	}
	return *c.MinRadius
}

// GetMaxRadius returns the configured max radius; 0 means "half the shorter
// image side", resolved by the detector once the image is known.
func (c *DetectorConfig) GetMaxRadius() int {
	if c.MaxRadius == nil {
		return 0
	}
	return *c.MaxRadius
}

func (c *DetectorConfig) GetMaxDistanceFraction() float64 {
	if c.MaxDistanceFraction == nil {
		return 0.25
	}
	return *c.MaxDistanceFraction
}

func (c *DetectorConfig) GetVoteWeight() string {
	if c.VoteWeight == nil {
		return WeightConstant
	}
	return strings.ToLower(*c.VoteWeight)
}

func (c *DetectorConfig) GetProjection() string {
	if c.Projection == nil {
		return ProjectionCircle
	}
	return strings.ToLower(*c.Projection)
}

// GetWorkers returns the voting worker count (default: 1, sequential).
func (c *DetectorConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return 1
	}
	return *c.Workers
}

func (c *DetectorConfig) GetNormalize() bool {
	if c.Normalize == nil {
		return true
	}
	return *c.Normalize
}

func (c *DetectorConfig) GetRadiusWeighting() bool {
	if c.RadiusWeighting == nil {
		return false
	}
	return *c.RadiusWeighting
}

// GetNeighborCount returns the peak neighborhood size (default: 26).
func (c *DetectorConfig) GetNeighborCount() int {
	if c.NeighborCount == nil {
		return 26
	}
	return *c.NeighborCount
}

func (c *DetectorConfig) GetMinPeakValue() float64 {
	if c.MinPeakValue == nil {
		return 0
	}
	return *c.MinPeakValue
}

// GetMaxCircles returns how many of the strongest peaks to keep (default: 10).
func (c *DetectorConfig) GetMaxCircles() int {
	if c.MaxCircles == nil {
		return 10
	}
	return *c.MaxCircles
}

func (c *DetectorConfig) GetRadius2D() int {
	if c.Radius2D == nil {
		return 0
	}
	return *c.Radius2D
}

func (c *DetectorConfig) GetPyramidDepth() int {
	if c.PyramidDepth == nil {
		return 3
	}
	return *c.PyramidDepth
}

func (c *DetectorConfig) GetPyramidInitialRadius() float64 {
	if c.PyramidInitialRadius == nil {
		return 10
	}
	return *c.PyramidInitialRadius
}

func (c *DetectorConfig) GetPyramidScaleFactor() float64 {
	if c.PyramidScaleFactor == nil {
		return 2
	}
	return *c.PyramidScaleFactor
}

func (c *DetectorConfig) GetCircularityMin() float64 {
	if c.CircularityMin == nil {
		return 0.8
	}
	return *c.CircularityMin
}

func (c *DetectorConfig) GetMinContourPixels() int {
	if c.MinContourPixels == nil {
		return 10
	}
	return *c.MinContourPixels
}

// GetMergeDistance returns the center distance under which pyramid detections
// from neighbouring scales are merged (default: 4 pixels at the finer scale).
func (c *DetectorConfig) GetMergeDistance() float64 {
	if c.MergeDistance == nil {
		return 4
	}
	return *c.MergeDistance
}

func (c *DetectorConfig) GetOverlayStyle() string {
	if c.OverlayStyle == nil {
		return OverlayOutline
	}
	return strings.ToLower(*c.OverlayStyle)
}

func (c *DetectorConfig) GetLowColor() string {
	if c.LowColor == nil {
		return "#1E50FF"
	}
	return *c.LowColor
}

func (c *DetectorConfig) GetHighColor() string {
	if c.HighColor == nil {
		return "#FF2020"
	}
	return *c.HighColor
}

func (c *DetectorConfig) GetOverlayLabels() bool {
	if c.OverlayLabels == nil {
		return false
	}
	return *c.OverlayLabels
}
