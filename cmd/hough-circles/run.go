package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/detection"
	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/monitoring"
	"github.com/ironsheep/hough-circles/internal/render"
	"github.com/ironsheep/hough-circles/internal/server"
)

// Heatmap size written by detect -heatmap.
const (
	heatmapWidth  = 640
	heatmapHeight = 480
)

// run dispatches to a subcommand. With no arguments it serves MCP, which is
// how MCP clients launch the binary.
func run(args []string, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "detect":
		return runDetect(args, stdout)
	case "edges":
		return runEdges(args, stdout)
	case "serve":
		return runServe(args)
	default:
		return fmt.Errorf("unknown command %q (try --help)", cmd)
	}
}

// detectorFlags are the config overrides shared by detect and edges. Only
// flags given on the command line override the config file.
type detectorFlags struct {
	configPath string
	strategy   string
	mode       string
	minRadius  int
	maxRadius  int
	threshold  int
	maxCircles int
	workers    int
	voteWeight string
	outDir     string
}

func (f *detectorFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "detector configuration JSON file")
	fs.StringVar(&f.strategy, "strategy", config.StrategyDirect, "direct, gradient or pyramid")
	fs.StringVar(&f.mode, "mode", config.Mode3D, "accumulator mode: 2d or 3d")
	fs.IntVar(&f.minRadius, "min-radius", 0, "smallest radius to vote for")
	fs.IntVar(&f.maxRadius, "max-radius", 0, "largest radius (0 = half the shorter side)")
	fs.IntVar(&f.threshold, "threshold", 60, "edge threshold (0-255)")
	fs.IntVar(&f.maxCircles, "max-circles", 10, "keep the n strongest circles (0 = all)")
	fs.IntVar(&f.workers, "workers", 1, "parallel voting workers")
	fs.StringVar(&f.voteWeight, "vote-weight", config.WeightConstant, "constant, distance or magnitude")
	fs.StringVar(&f.outDir, "out", "", "directory for output images")
}

// config loads the config file, if any, and layers explicit flags on top.
func (f *detectorFlags) config(fs *flag.FlagSet) (*config.DetectorConfig, error) {
	cfg := config.EmptyDetectorConfig()
	if f.configPath != "" {
		loaded, err := config.LoadDetectorConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	over := config.EmptyDetectorConfig()
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "strategy":
			over.Strategy = &f.strategy
		case "mode":
			over.AccumulatorMode = &f.mode
		case "min-radius":
			over.MinRadius = &f.minRadius
		case "max-radius":
			over.MaxRadius = &f.maxRadius
		case "threshold":
			over.EdgeThreshold = &f.threshold
		case "max-circles":
			over.MaxCircles = &f.maxCircles
		case "workers":
			over.Workers = &f.workers
		case "vote-weight":
			over.VoteWeight = &f.voteWeight
		}
	})
	cfg.Merge(over)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// imageStem is the file name of path without directory or extension.
func imageStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type detectOutput struct {
	Path string `json:"path"`
	*detection.Result
	Saved []string `json:"saved,omitempty"`
}

func runDetect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	var f detectorFlags
	f.register(fs)
	heatmap := fs.Bool("heatmap", false, "also plot the strongest accumulator slice")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("detect: at least one image path is required")
	}

	cfg, err := f.config(fs)
	if err != nil {
		return err
	}
	detector, err := detection.NewDetector(cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	for _, path := range fs.Args() {
		img, err := imaging.LoadImage(path)
		if err != nil {
			return err
		}
		res, err := detector.Detect(img)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		monitoring.Logf("%s: %d circles (run %s)", path, res.Count, res.RunID)

		out := detectOutput{Path: path, Result: res}
		if f.outDir != "" {
			sink := &render.FileSink{Dir: f.outDir, Prefix: imageStem(path) + "-"}
			out.Saved = publishResult(sink, res, *heatmap)
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

// publishResult writes the overlay, the edge mask and optionally the
// strongest accumulator slice. It returns the paths that were written.
func publishResult(sink *render.FileSink, res *detection.Result, heatmap bool) []string {
	var saved []string
	save := func(name string, img image.Image) {
		if render.Publish(sink, name, img) {
			saved = append(saved, sink.Path(name))
		}
	}

	save("overlay", res.Overlay)
	save("edges", res.Edges.Image())
	if heatmap && res.Scored != nil {
		k := render.BestRadiusSlice(res.Scored)
		plot, err := render.AccumulatorHeatmap(res.Scored, k, heatmapWidth, heatmapHeight)
		if err != nil {
			monitoring.Logf("skipping heatmap: %v", err)
		} else {
			save(fmt.Sprintf("accumulator_%d", k), plot)
		}
	}
	return saved
}

type edgesOutput struct {
	Path       string   `json:"path"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	EdgeCount  int      `json:"edge_count"`
	Threshold  int      `json:"threshold"`
	KernelSize int      `json:"kernel_size"`
	Saved      []string `json:"saved,omitempty"`
}

func runEdges(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("edges", flag.ContinueOnError)
	var f detectorFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("edges: at least one image path is required")
	}

	cfg, err := f.config(fs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	for _, path := range fs.Args() {
		img, err := imaging.LoadImage(path)
		if err != nil {
			return err
		}
		edges, err := detection.ExtractEdges(cfg, img)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		out := edgesOutput{
			Path:       path,
			Width:      edges.Mask.Width,
			Height:     edges.Mask.Height,
			EdgeCount:  edges.Mask.Count(),
			Threshold:  edges.Threshold,
			KernelSize: edges.KernelSize,
		}
		if f.outDir != "" {
			sink := &render.FileSink{Dir: f.outDir, Prefix: imageStem(path) + "-"}
			if render.Publish(sink, "edges", edges.Mask.Image()) {
				out.Saved = []string{sink.Path("edges")}
			}
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "detector configuration JSON file")
	outDir := fs.String("out", "", "also write every tool image to this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.EmptyDetectorConfig()
	if *configPath != "" {
		loaded, err := config.LoadDetectorConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	server.Version = Version
	srv := server.New(cfg)
	if *outDir != "" {
		srv.SetSink(&render.FileSink{Dir: *outDir})
	}
	monitoring.Debugf("serving MCP on stdio")
	return srv.Run()
}
