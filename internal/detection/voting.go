package detection

import (
	"image"

	"github.com/ironsheep/hough-circles/internal/config"
)

// DirectVoting runs the plain pipeline: every edge pixel votes.
//
// This is the reference strategy. Accuracy depends almost entirely on the
// edge threshold and the radius range; cost is dominated by voting.
type DirectVoting struct {
	Pipeline *Pipeline
}

var _ CircleDetector = (*DirectVoting)(nil)

func (d *DirectVoting) Name() string { return config.StrategyDirect }

func (d *DirectVoting) Detect(img image.Image) (*Result, error) {
	return d.Pipeline.Run(d.Name(), img, false, nil)
}

// GradientFiltered runs the same pipeline with gradient orientation computed
// for every pixel and reported in Result.Orientation. Gate, when set, decides
// per edge pixel whether it may vote, which is where a direction-consistency
// test plugs in.
//
// With a nil Gate the votes, peaks and circles are exactly those of
// DirectVoting: voting is constrained by the edge threshold alone.
type GradientFiltered struct {
	Pipeline *Pipeline
	Gate     EdgeFilter
}

var _ CircleDetector = (*GradientFiltered)(nil)

func (g *GradientFiltered) Name() string { return config.StrategyGradient }

func (g *GradientFiltered) Detect(img image.Image) (*Result, error) {
	return g.Pipeline.Run(g.Name(), img, true, g.Gate)
}
