package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the image path argument shared by every tool.
var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

// regionProperties restrict a tool to part of the image. Results are always
// reported in full-image coordinates.
func regionProperties() map[string]interface{} {
	return map[string]interface{}{
		"region": map[string]interface{}{
			"type":        "object",
			"description": "Optional rectangle to analyze; x2/y2 are exclusive",
			"properties": map[string]interface{}{
				"x1": map[string]interface{}{"type": "integer"},
				"y1": map[string]interface{}{"type": "integer"},
				"x2": map[string]interface{}{"type": "integer"},
				"y2": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"x1", "y1", "x2", "y2"},
		},
		"named_region": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"full", "top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"},
			"description": "Optional named region to analyze. Ignored when region is given",
		},
	}
}

// detectorProperties are the per-call overrides of the server's detector
// configuration. Field names match the JSON config file.
func detectorProperties() map[string]interface{} {
	return map[string]interface{}{
		"strategy": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"direct", "gradient", "pyramid"},
			"description": "Detection strategy. Default direct",
		},
		"accumulator_mode": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"2d", "3d"},
			"description": "2d distance voting or 3d (center, radius) voting. Default 3d",
		},
		"min_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Smallest radius to vote for (3d mode)",
		},
		"max_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Largest radius to vote for (3d mode). 0 selects half the shorter image side",
		},
		"vote_weight": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"constant", "distance", "magnitude"},
			"description": "Worth of one vote: 1, the pair distance (2d only) or the gradient magnitude at the edge pixel. Default constant",
		},
		"edge_threshold": map[string]interface{}{
			"type":        "integer",
			"description": "Gradient magnitude (0-255) a pixel needs to count as an edge. Default 60",
		},
		"edge_threshold_fraction": map[string]interface{}{
			"type":        "number",
			"description": "Relative threshold as a fraction of the strongest gradient. Overrides edge_threshold when > 0",
		},
		"neighbor_count": map[string]interface{}{
			"type":        "integer",
			"description": "Neighborhood size for local maximum search. Default 26",
		},
		"max_circles": map[string]interface{}{
			"type":        "integer",
			"description": "Keep at most this many strongest circles. 0 keeps all",
		},
		"normalize": map[string]interface{}{
			"type":        "boolean",
			"description": "Rescale votes to [0, 255] before peak finding. Default true",
		},
		"workers": map[string]interface{}{
			"type":        "integer",
			"description": "Parallel voting workers. Default 1",
		},
	}
}

func toolSchema(required []string, groups ...map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{"path": pathProperty}
	for _, g := range groups {
		for k, v := range g {
			props[k] = v
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and the default maximum search radius. The image is cached for subsequent calls.",
			InputSchema: toolSchema([]string{"path"}, map[string]interface{}{
				"reload": map[string]interface{}{
					"type":        "boolean",
					"description": "Drop the cached copy and read the file again",
					"default":     false,
				},
			}),
		},
		{
			Name:        "circles_detect",
			Description: "Detect circles with a Hough transform. Returns centers, radii, vote counts and confidence (relative to the strongest circle). Optionally returns the overlay image as base64-encoded PNG.",
			InputSchema: toolSchema([]string{"path"}, regionProperties(), detectorProperties(), map[string]interface{}{
				"include_overlay": map[string]interface{}{
					"type":        "boolean",
					"description": "Return the image with detections drawn on it",
					"default":     false,
				},
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Scale factor for returned images. Default 1.0",
					"default":     1.0,
				},
				"output_dir": map[string]interface{}{
					"type":        "string",
					"description": "Optional directory to write the overlay and edge mask to",
				},
			}),
		},
		{
			Name:        "circles_edges",
			Description: "Run only the edge stage (blur, gradient, threshold) and return the binary edge mask as base64-encoded PNG. Use this to tune edge_threshold.",
			InputSchema: toolSchema([]string{"path"}, regionProperties(), detectorProperties(), map[string]interface{}{
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Scale factor for the returned mask. Default 1.0",
					"default":     1.0,
				},
				"output_dir": map[string]interface{}{
					"type":        "string",
					"description": "Optional directory to write the edge mask to",
				},
			}),
		},
		{
			Name:        "circles_accumulator",
			Description: "Run voting and render one radius slice of the accumulator as a heatmap (base64-encoded PNG). Bright spots are candidate centers.",
			InputSchema: toolSchema([]string{"path"}, regionProperties(), detectorProperties(), map[string]interface{}{
				"radius_index": map[string]interface{}{
					"type":        "integer",
					"description": "Accumulator slice to plot (the radius in 3d mode). Defaults to the slice holding the strongest vote",
				},
				"plot_width": map[string]interface{}{
					"type":        "integer",
					"description": "Plot width in pixels. Default 640",
					"default":     640,
				},
				"plot_height": map[string]interface{}{
					"type":        "integer",
					"description": "Plot height in pixels. Default 480",
					"default":     480,
				},
				"output_dir": map[string]interface{}{
					"type":        "string",
					"description": "Optional directory to write the heatmap to",
				},
			}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
