package server

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/detection"
	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/monitoring"
	"github.com/ironsheep/hough-circles/internal/render"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "circles_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Layers the per-call detector overrides over the server configuration
//  3. Loads the image from cache and crops it to the requested region
//  4. Runs the detector (or one stage of it)
//  5. Returns the result in full-image coordinates
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "circles_detect":
		return s.handleCirclesDetect(args)
	case "circles_edges":
		return s.handleCirclesEdges(args)
	case "circles_accumulator":
		return s.handleCirclesAccumulator(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Shared argument handling ===

// targetArgs selects an image and, optionally, the part of it to analyze.
type targetArgs struct {
	Path        string          `json:"path"`
	Region      *imaging.Region `json:"region,omitempty"`
	NamedRegion string          `json:"named_region,omitempty"`
}

// target is a loaded, cropped image together with the offset of the crop.
type target struct {
	img    image.Image
	region imaging.Region
	origin image.Point
}

func (s *Server) loadTarget(a targetArgs) (*target, error) {
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	region := imaging.Region{X1: b.Min.X, Y1: b.Min.Y, X2: b.Max.X, Y2: b.Max.Y}
	switch {
	case a.Region != nil:
		region = *a.Region
	case a.NamedRegion != "":
		named, err := imaging.NamedRegion(a.NamedRegion, b.Dx(), b.Dy())
		if err != nil {
			return nil, err
		}
		region = imaging.Region{X1: named.X1 + b.Min.X, Y1: named.Y1 + b.Min.Y, X2: named.X2 + b.Min.X, Y2: named.Y2 + b.Min.Y}
	}

	if region.Rect() == b {
		return &target{img: img, region: region, origin: b.Min}, nil
	}
	cropped, err := imaging.CropRegion(img, region)
	if err != nil {
		return nil, err
	}
	return &target{img: cropped, region: region, origin: image.Pt(region.X1, region.Y1)}, nil
}

// detectorConfig layers the per-call overrides over the server config.
func (s *Server) detectorConfig(overrides *config.DetectorConfig) (*config.DetectorConfig, error) {
	cfg := config.EmptyDetectorConfig()
	cfg.Merge(s.base)
	cfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// publish sends img to the server sink and, when outputDir is set, to a
// file sink. It returns the paths that were written.
func (s *Server) publish(outputDir, prefix, name string, img image.Image) []string {
	if s.sink != nil {
		render.Publish(s.sink, prefix+name, img)
	}
	if outputDir == "" {
		return nil
	}
	fs := &render.FileSink{Dir: outputDir, Prefix: prefix}
	if !render.Publish(fs, name, img) {
		return nil
	}
	return []string{fs.Path(name)}
}

func runPrefix(runID string) string {
	if len(runID) >= 8 {
		return runID[:8] + "-"
	}
	return ""
}

// === Image Information Handlers ===

type imageLoadArgs struct {
	Path   string `json:"path"`
	Reload bool   `json:"reload,omitempty"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Reload {
		s.cache.Evict(a.Path)
	}
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("image_load %s: %dx%d, %d images cached", a.Path, info.Width, info.Height, s.cache.Len())
	return info, nil
}

// === Detection Handlers ===

type circlesDetectArgs struct {
	targetArgs
	config.DetectorConfig

	IncludeOverlay bool    `json:"include_overlay"`
	Scale          float64 `json:"scale"`
	OutputDir      string  `json:"output_dir"`
}

type circlesDetectResult struct {
	*detection.Result
	Region  imaging.Region        `json:"region"`
	Overlay *imaging.EncodedImage `json:"overlay,omitempty"`
	Saved   []string              `json:"saved,omitempty"`
}

func (s *Server) handleCirclesDetect(args json.RawMessage) (interface{}, error) {
	var a circlesDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	cfg, err := s.detectorConfig(&a.DetectorConfig)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTarget(a.targetArgs)
	if err != nil {
		return nil, err
	}

	detector, err := detection.NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	res, err := detector.Detect(t.img)
	if err != nil {
		return nil, err
	}
	res.Translate(t.origin.X, t.origin.Y)

	out := &circlesDetectResult{Result: res, Region: t.region}
	if a.IncludeOverlay {
		out.Overlay, err = imaging.EncodePNG(res.Overlay, a.Scale)
		if err != nil {
			return nil, err
		}
	}
	prefix := runPrefix(res.RunID)
	out.Saved = append(out.Saved, s.publish(a.OutputDir, prefix, "overlay", res.Overlay)...)
	out.Saved = append(out.Saved, s.publish(a.OutputDir, prefix, "edges", res.Edges.Image())...)
	return out, nil
}

type circlesEdgesArgs struct {
	targetArgs
	config.DetectorConfig

	Scale     float64 `json:"scale"`
	OutputDir string  `json:"output_dir"`
}

type circlesEdgesResult struct {
	Region     imaging.Region        `json:"region"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
	EdgeCount  int                   `json:"edge_count"`
	Threshold  int                   `json:"threshold"`
	KernelSize int                   `json:"kernel_size"`
	Image      *imaging.EncodedImage `json:"image"`
	Saved      []string              `json:"saved,omitempty"`
}

func (s *Server) handleCirclesEdges(args json.RawMessage) (interface{}, error) {
	var a circlesEdgesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	cfg, err := s.detectorConfig(&a.DetectorConfig)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTarget(a.targetArgs)
	if err != nil {
		return nil, err
	}

	edges, err := detection.ExtractEdges(cfg, t.img)
	if err != nil {
		return nil, err
	}
	mask := edges.Mask.Image()
	encoded, err := imaging.EncodePNG(mask, a.Scale)
	if err != nil {
		return nil, err
	}

	return &circlesEdgesResult{
		Region:     t.region,
		Width:      edges.Mask.Width,
		Height:     edges.Mask.Height,
		EdgeCount:  edges.Mask.Count(),
		Threshold:  edges.Threshold,
		KernelSize: edges.KernelSize,
		Image:      encoded,
		Saved:      s.publish(a.OutputDir, "", "edges", mask),
	}, nil
}

type circlesAccumulatorArgs struct {
	targetArgs
	config.DetectorConfig

	RadiusIndex *int   `json:"radius_index,omitempty"`
	PlotWidth   int    `json:"plot_width"`
	PlotHeight  int    `json:"plot_height"`
	OutputDir   string `json:"output_dir"`
}

type circlesAccumulatorResult struct {
	RunID       string                `json:"run_id"`
	Mode        string                `json:"mode"`
	RadiusIndex int                   `json:"radius_index"`
	Radii       int                   `json:"radii"`
	MaxVotes    float64               `json:"max_votes"`
	TotalVotes  float64               `json:"total_votes"`
	Count       int                   `json:"count"`
	Heatmap     *imaging.EncodedImage `json:"heatmap"`
	Saved       []string              `json:"saved,omitempty"`
}

func (s *Server) handleCirclesAccumulator(args json.RawMessage) (interface{}, error) {
	var a circlesAccumulatorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.PlotWidth == 0 {
		a.PlotWidth = 640
	}
	if a.PlotHeight == 0 {
		a.PlotHeight = 480
	}
	cfg, err := s.detectorConfig(&a.DetectorConfig)
	if err != nil {
		return nil, err
	}
	if cfg.GetStrategy() == config.StrategyPyramid {
		return nil, fmt.Errorf("strategy %q does not use an accumulator", config.StrategyPyramid)
	}
	t, err := s.loadTarget(a.targetArgs)
	if err != nil {
		return nil, err
	}

	detector, err := detection.NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	res, err := detector.Detect(t.img)
	if err != nil {
		return nil, err
	}

	acc := res.Scored
	k := render.BestRadiusSlice(acc)
	if a.RadiusIndex != nil {
		k = *a.RadiusIndex
	}
	plot, err := render.AccumulatorHeatmap(acc, k, a.PlotWidth, a.PlotHeight)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(plot, 1.0)
	if err != nil {
		return nil, err
	}

	mode := config.Mode2D
	if acc.Is3D() {
		mode = config.Mode3D
	}
	return &circlesAccumulatorResult{
		RunID:       res.RunID,
		Mode:        mode,
		RadiusIndex: k,
		Radii:       acc.Radii,
		MaxVotes:    res.Accumulator.Max(),
		TotalVotes:  res.Accumulator.Sum(),
		Count:       res.Count,
		Heatmap:     encoded,
		Saved:       s.publish(a.OutputDir, runPrefix(res.RunID), fmt.Sprintf("accumulator_%d", k), plot),
	}, nil
}
