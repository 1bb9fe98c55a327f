package detection

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/hough"
	"github.com/ironsheep/hough-circles/internal/imaging"
)

// createCircleImage draws a 1-pixel circle outline (midpoint algorithm) of
// intensity fg on a bg background.
func createCircleImage(width, height, cx, cy, radius int, fg, bg uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = bg
	}

	x, y := radius, 0
	err := 1 - radius
	for x >= y {
		for _, p := range [8][2]int{
			{cx + x, cy + y}, {cx + y, cy + x}, {cx - y, cy + x}, {cx - x, cy + y},
			{cx - x, cy - y}, {cx - y, cy - x}, {cx + y, cy - x}, {cx + x, cy - y},
		} {
			img.SetGray(p[0], p[1], color.Gray{Y: fg})
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
	return img
}

// createDiscImage draws a filled disc.
func createDiscImage(width, height, cx, cy, radius int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func configWith(mutate func(c *config.DetectorConfig)) *config.DetectorConfig {
	c := config.EmptyDetectorConfig()
	mutate(c)
	return c
}

func TestNewDetector_Strategies(t *testing.T) {
	tests := []struct {
		strategy string
		want     interface{}
	}{
		{config.StrategyDirect, &DirectVoting{}},
		{config.StrategyGradient, &GradientFiltered{}},
		{config.StrategyPyramid, &PyramidRefined{}},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
				c.Strategy = &tt.strategy
			}))
			require.NoError(t, err)
			assert.IsType(t, tt.want, d)
			assert.Equal(t, tt.strategy, d.Name())
		})
	}

	d, err := NewDetector(nil)
	require.NoError(t, err)
	assert.Equal(t, config.StrategyDirect, d.Name())
}

func TestNewDetector_ParameterErrors(t *testing.T) {
	bogus := "bogus"
	badColor := "blue"
	tests := []struct {
		name  string
		cfg   *config.DetectorConfig
		field string
	}{
		{"unknown strategy", configWith(func(c *config.DetectorConfig) { c.Strategy = &bogus }), "strategy"},
		{"unknown filter backend", configWith(func(c *config.DetectorConfig) { c.FilterBackend = &bogus }), "filter_backend"},
		{"bad color", configWith(func(c *config.DetectorConfig) { c.LowColor = &badColor }), "low_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDetector(tt.cfg)
			require.Error(t, err)
			var pe *config.ParameterError
			require.True(t, errors.As(err, &pe), "got %T", err)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

// A 50×50 frame with one circle of radius 10 at (25,25): the strongest 3D
// peak must land within two pixels of the center and of the radius.
func TestDirectVoting_SyntheticCircle(t *testing.T) {
	img := createCircleImage(50, 50, 25, 25, 10, 255, 0)

	maxRadius := 20
	d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
		c.MaxRadius = &maxRadius
	}))
	require.NoError(t, err)

	res, err := d.Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, res.Circles)
	require.NotEmpty(t, res.Peaks)

	top := res.Peaks[0]
	assert.InDelta(t, 25, top.Row, 2)
	assert.InDelta(t, 25, top.Col, 2)
	assert.InDelta(t, 10, top.Radius, 2)

	c := res.Circles[0]
	assert.Equal(t, top.Col, c.Center.X)
	assert.Equal(t, top.Row, c.Center.Y)
	assert.Equal(t, top.Radius, c.Radius)
	assert.Equal(t, 2*c.Radius, c.Diameter)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)

	assert.Equal(t, 50, res.Accumulator.Rows)
	assert.Equal(t, 50, res.Accumulator.Cols)
	assert.Equal(t, 20, res.Accumulator.Radii)
	assert.Equal(t, 255.0, res.Scored.Max())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.Count, len(res.Circles))
}

// An all-black frame has no edges, no votes and no peaks.
func TestDetect_AllBlack(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 48, 40))

	for _, strategy := range []string{config.StrategyDirect, config.StrategyGradient, config.StrategyPyramid} {
		for _, mode := range []string{config.Mode2D, config.Mode3D} {
			t.Run(strategy+"/"+mode, func(t *testing.T) {
				d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
					c.Strategy = &strategy
					c.AccumulatorMode = &mode
				}))
				require.NoError(t, err)

				res, err := d.Detect(img)
				require.NoError(t, err)

				assert.Zero(t, res.Edges.Count())
				assert.Zero(t, res.EdgeCount)
				assert.Empty(t, res.Peaks)
				assert.Empty(t, res.Circles)
				if res.Accumulator != nil {
					for _, v := range res.Accumulator.Cells {
						require.Zero(t, v)
					}
					for _, v := range res.Scored.Cells {
						require.Zero(t, v)
					}
				}
			})
		}
	}
}

// A uniform brightness offset leaves gradients unchanged, so edges and
// peaks must match exactly.
func TestDirectVoting_BrightnessOffset(t *testing.T) {
	base := createCircleImage(50, 50, 24, 26, 9, 150, 30)
	shifted := createCircleImage(50, 50, 24, 26, 9, 210, 90)

	maxRadius := 16
	d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
		c.MaxRadius = &maxRadius
	}))
	require.NoError(t, err)

	a, err := d.Detect(base)
	require.NoError(t, err)
	b, err := d.Detect(shifted)
	require.NoError(t, err)

	require.NotZero(t, a.EdgeCount)
	assert.Equal(t, a.Edges.Points(), b.Edges.Points())
	assert.Equal(t, a.Peaks, b.Peaks)
	assert.Equal(t, a.Circles, b.Circles)
}

func TestDirectVoting_WorkersMatchSequential(t *testing.T) {
	img := createCircleImage(50, 50, 25, 25, 10, 255, 0)
	maxRadius := 14

	run := func(workers int) *Result {
		d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
			c.MaxRadius = &maxRadius
			c.Workers = &workers
		}))
		require.NoError(t, err)
		res, err := d.Detect(img)
		require.NoError(t, err)
		return res
	}

	seq, par := run(1), run(4)
	assert.Equal(t, seq.Accumulator.Cells, par.Accumulator.Cells)
	assert.Equal(t, seq.Peaks, par.Peaks)
}

func TestDirectVoting_2D(t *testing.T) {
	img := createCircleImage(40, 40, 20, 20, 8, 255, 0)
	mode := config.Mode2D

	t.Run("fixed radius", func(t *testing.T) {
		fixed := 7
		d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
			c.AccumulatorMode = &mode
			c.Radius2D = &fixed
		}))
		require.NoError(t, err)

		res, err := d.Detect(img)
		require.NoError(t, err)
		require.NotEmpty(t, res.Circles)
		assert.False(t, res.Accumulator.Is3D())
		for _, c := range res.Circles {
			assert.Equal(t, 7, c.Radius)
			// 2D votes land on edge pixels, so every peak is an edge.
			assert.True(t, res.Edges.IsEdge(c.Center.Y, c.Center.X))
		}
	})

	t.Run("derived radius", func(t *testing.T) {
		d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
			c.AccumulatorMode = &mode
		}))
		require.NoError(t, err)

		res, err := d.Detect(img)
		require.NoError(t, err)
		require.NotEmpty(t, res.Circles)
		for _, c := range res.Circles {
			assert.Greater(t, c.Radius, 0)
		}
	})
}

func TestGradientFiltered(t *testing.T) {
	img := createCircleImage(50, 50, 25, 25, 10, 255, 0)
	maxRadius := 14
	cfg := configWith(func(c *config.DetectorConfig) { c.MaxRadius = &maxRadius })

	direct, err := NewDetector(cfg)
	require.NoError(t, err)
	want, err := direct.Detect(img)
	require.NoError(t, err)

	pipeline, err := NewPipeline(cfg)
	require.NoError(t, err)

	t.Run("no gate matches direct voting", func(t *testing.T) {
		g := &GradientFiltered{Pipeline: pipeline}
		got, err := g.Detect(img)
		require.NoError(t, err)
		assert.Equal(t, config.StrategyGradient, got.Strategy)
		assert.Equal(t, want.Peaks, got.Peaks)
		assert.Equal(t, want.EdgeCount, got.EdgeCount)
	})

	t.Run("orientation computed without a gate", func(t *testing.T) {
		assert.Nil(t, want.Orientation, "direct voting skips orientation")

		got, err := (&GradientFiltered{Pipeline: pipeline}).Detect(img)
		require.NoError(t, err)
		require.Len(t, got.Orientation, 50*50)

		// Right of the center the intensity falls off towards +x across the
		// outline's outer side, so the gradient points along -x there.
		checked := 0
		for _, pt := range got.Edges.Points() {
			if pt.Row == 25 && pt.Col > 35 {
				assert.InDelta(t, math.Pi, math.Abs(got.Orientation[pt.Row*50+pt.Col]), 0.3)
				checked++
			}
		}
		assert.NotZero(t, checked)
	})

	t.Run("gate sees orientation", func(t *testing.T) {
		var thetas []float64
		g := &GradientFiltered{Pipeline: pipeline, Gate: func(p imaging.Pixel, theta float64) bool {
			thetas = append(thetas, theta)
			return true
		}}
		got, err := g.Detect(img)
		require.NoError(t, err)
		assert.Len(t, thetas, want.EdgeCount)
		assert.Equal(t, want.Peaks, got.Peaks)

		nonZero := 0
		for _, th := range thetas {
			assert.LessOrEqual(t, math.Abs(th), math.Pi)
			if th != 0 {
				nonZero++
			}
		}
		assert.NotZero(t, nonZero)
	})

	t.Run("rejecting gate silences voting", func(t *testing.T) {
		g := &GradientFiltered{Pipeline: pipeline, Gate: func(imaging.Pixel, float64) bool { return false }}
		got, err := g.Detect(img)
		require.NoError(t, err)
		assert.Zero(t, got.EdgeCount)
		assert.Zero(t, got.Accumulator.Sum())
		assert.Empty(t, got.Circles)
		// The mask itself is unaffected by the gate.
		assert.Equal(t, want.Edges.Count(), got.Edges.Count())
	})
}

func TestPyramidRefined_Disc(t *testing.T) {
	img := createDiscImage(100, 100, 50, 50, 20)

	d, err := NewDetector(configWith(func(c *config.DetectorConfig) {
		s := config.StrategyPyramid
		c.Strategy = &s
	}))
	require.NoError(t, err)

	res, err := d.Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, res.Circles)
	assert.Nil(t, res.Accumulator)

	c := res.Circles[0]
	assert.InDelta(t, 50, c.Center.X, 3)
	assert.InDelta(t, 50, c.Center.Y, 3)
	assert.GreaterOrEqual(t, c.Votes, 2.0, "disc should be confirmed at more than one scale")
	assert.InDelta(t, 21, c.MeasuredRadius, 4)
	assert.Equal(t, 0, c.Scale)

	p := d.(*PyramidRefined)
	assert.Equal(t, p.EstimatedRadius(c.Scale), c.Radius)
}

// countingFitter is a filter backend that fits circles itself.
type countingFitter struct {
	imaging.BildFilters
	calls int
}

func (f *countingFitter) EnclosingCircle(points []imaging.Pixel) (x, y, r float64) {
	f.calls++
	return minEnclosingCircle(points)
}

func TestPyramidRefined_UsesBackendCircleFit(t *testing.T) {
	img := createDiscImage(100, 100, 50, 50, 20)
	cfg := configWith(func(c *config.DetectorConfig) {
		s := config.StrategyPyramid
		c.Strategy = &s
	})

	plain, err := NewPyramidRefined(cfg)
	require.NoError(t, err)
	want, err := plain.Detect(img)
	require.NoError(t, err)

	fitted, err := NewPyramidRefined(cfg)
	require.NoError(t, err)
	fitter := &countingFitter{}
	fitted.Edges.Filters = fitter

	got, err := fitted.Detect(img)
	require.NoError(t, err)
	assert.NotZero(t, fitter.calls)
	assert.Equal(t, want.Circles, got.Circles)
}

func TestPyramidRefined_EstimatedRadius(t *testing.T) {
	p := &PyramidRefined{InitialRadius: 10, ScaleFactor: 2}
	assert.Equal(t, 10, p.EstimatedRadius(0))
	assert.Equal(t, 20, p.EstimatedRadius(1))
	assert.Equal(t, 40, p.EstimatedRadius(2))

	p.ScaleFactor = 0.5
	assert.Equal(t, 5, p.EstimatedRadius(1))
}

func TestBuildPyramid(t *testing.T) {
	levels := buildPyramid(image.NewGray(image.Rect(0, 0, 64, 40)), 5, imaging.BildFilters{})
	require.Len(t, levels, 3)
	assert.Equal(t, 32, levels[1].Bounds().Dx())
	assert.Equal(t, 10, levels[2].Bounds().Dy())

	levels = buildPyramid(image.NewGray(image.Rect(0, 0, 64, 64)), 0, imaging.BildFilters{})
	assert.Len(t, levels, 1)
}

func TestMergeDetections(t *testing.T) {
	coarse := []scaleDetection{
		{x: 10, y: 10, support: 2, circularity: 0.9, level: 1},
		{x: 40, y: 40, support: 1, circularity: 0.85, level: 1},
	}
	fine := []scaleDetection{
		{x: 11, y: 12, support: 1, circularity: 0.82, level: 0},
		{x: 70, y: 5, support: 1, circularity: 0.95, level: 0},
	}

	merged := mergeDetections(coarse, fine, 4)
	require.Len(t, merged, 3)

	assert.Equal(t, 3, merged[0].support)
	assert.Equal(t, 11.0, merged[0].x)
	assert.Equal(t, 0.9, merged[0].circularity)
	assert.Equal(t, 0, merged[0].level)

	assert.Equal(t, 1, merged[1].support)
	assert.Equal(t, 40.0, merged[2].x)
	assert.Equal(t, 1, merged[2].level)
}

func TestUpscale(t *testing.T) {
	out := upscale([]scaleDetection{{x: 5, y: 0, measured: 3}}, 2, 2)
	assert.Equal(t, 10.5, out[0].x)
	assert.Equal(t, 0.5, out[0].y)
	assert.Equal(t, 6.0, out[0].measured)
}

func TestResult_Translate(t *testing.T) {
	r := &Result{
		Peaks:   []hough.Peak{{Row: 3, Col: 4, Radius: 2}},
		Circles: []Circle{{Center: Point{X: 4, Y: 3}, Radius: 2}},
	}
	r.Translate(10, 20)

	assert.Equal(t, Point{X: 14, Y: 23}, r.Circles[0].Center)
	assert.Equal(t, 23, r.Peaks[0].Row)
	assert.Equal(t, 14, r.Peaks[0].Col)
	assert.Equal(t, 2, r.Circles[0].Radius)
}

func TestExtractEdges(t *testing.T) {
	img := createCircleImage(50, 50, 25, 25, 10, 255, 0)

	edges, err := ExtractEdges(nil, img)
	require.NoError(t, err)
	assert.Positive(t, edges.Mask.Count())
	assert.Equal(t, 60, edges.Threshold)

	_, err = ExtractEdges(configWith(func(c *config.DetectorConfig) {
		v := -3
		c.EdgeThreshold = &v
	}), img)
	var pe *config.ParameterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "edge_threshold", pe.Field)
}

// Magnitude-weighted votes still find the synthetic circle, and every vote
// is worth the edge strength rather than 1.
func TestDirectVoting_MagnitudeWeight(t *testing.T) {
	img := createCircleImage(50, 50, 25, 25, 10, 255, 0)
	maxRadius := 20
	normalize := false

	constant, err := NewDetector(configWith(func(c *config.DetectorConfig) {
		c.MaxRadius = &maxRadius
		c.Normalize = &normalize
	}))
	require.NoError(t, err)
	base, err := constant.Detect(img)
	require.NoError(t, err)

	weight := config.WeightMagnitude
	weighted, err := NewDetector(configWith(func(c *config.DetectorConfig) {
		c.MaxRadius = &maxRadius
		c.Normalize = &normalize
		c.VoteWeight = &weight
	}))
	require.NoError(t, err)
	res, err := weighted.Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, res.Peaks)

	top := res.Peaks[0]
	assert.InDelta(t, 25, top.Row, 2)
	assert.InDelta(t, 25, top.Col, 2)
	assert.InDelta(t, 10, top.Radius, 2)

	// Edge pixels sit at or above the threshold, so each vote outweighs a
	// constant vote by at least that much.
	assert.Equal(t, base.EdgeCount, res.EdgeCount)
	assert.GreaterOrEqual(t, res.Accumulator.Sum(), 60*base.Accumulator.Sum())
}
