package hough

import (
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/monitoring"
)

// VoteWeight selects how much a single vote is worth.
type VoteWeight int

const (
	// WeightConstant casts one vote.
	WeightConstant VoteWeight = iota
	// WeightDistance casts the integer-truncated pair distance. Only the 2D
	// scheme has a pair distance; the 3D scheme treats it as WeightConstant.
	WeightDistance
	// WeightMagnitude casts the gradient magnitude at the voting edge pixel.
	WeightMagnitude
)

// pixelWeight returns the 8-bit gradient magnitude at p. A nil magnitude
// image weighs every pixel 1; pixels outside it weigh 0.
func pixelWeight(mag *image.Gray, p imaging.Pixel) float64 {
	if mag == nil {
		return 1
	}
	b := mag.Bounds()
	pt := image.Pt(b.Min.X+p.Col, b.Min.Y+p.Row)
	if !pt.In(b) {
		return 0
	}
	return float64(mag.Pix[mag.PixOffset(pt.X, pt.Y)])
}

// Projection selects which candidate centers a 3D vote reaches.
type Projection int

const (
	// ProjectionCircle votes into every center on the rasterized ring of
	// radius r around the edge pixel.
	ProjectionCircle Projection = iota
	// ProjectionDiagonal votes into the single center pixel + (r, r). This
	// is a known approximation kept for comparison, not a real Hough vote.
	ProjectionDiagonal
)

// Voter builds an accumulator from edge pixels.
type Voter interface {
	Build(points []imaging.Pixel, rows, cols int) *Accumulator
}

// DistanceVoter is the simplified 2D scheme: every edge pixel acts as a
// reference and casts a vote at every other edge pixel closer than
// MaxDistance. It measures local edge density rather than circle membership.
// Cost is O(E²) in the number of edge pixels.
type DistanceVoter struct {
	MaxDistance float64
	Weight      VoteWeight
	Workers     int

	// Magnitude is read under WeightMagnitude; the reference pixel's value
	// is the weight of each of its votes.
	Magnitude *image.Gray
}

var _ Voter = (*DistanceVoter)(nil)

// Build returns a rows×cols accumulator.
func (v *DistanceVoter) Build(points []imaging.Pixel, rows, cols int) *Accumulator {
	acc := NewAccumulator2D(rows, cols)
	monitoring.Debugf("distance voting: %d edge pixels, max distance %.1f, workers %d",
		len(points), v.MaxDistance, v.Workers)
	parallelVote(acc, len(points), v.Workers, func(dst *Accumulator, i int) {
		v.VoteFrom(dst, points[i], points)
	})
	return acc
}

// VoteFrom performs the voting step for a single reference pixel.
func (v *DistanceVoter) VoteFrom(acc *Accumulator, ref imaging.Pixel, points []imaging.Pixel) {
	limit := v.MaxDistance * v.MaxDistance
	refWeight := 1.0
	if v.Weight == WeightMagnitude {
		refWeight = pixelWeight(v.Magnitude, ref)
	}
	for _, p := range points {
		if p == ref {
			continue
		}
		dr := float64(p.Row - ref.Row)
		dc := float64(p.Col - ref.Col)
		d2 := dr*dr + dc*dc
		if d2 >= limit {
			continue
		}
		w := refWeight
		if v.Weight == WeightDistance {
			w = math.Trunc(math.Sqrt(d2))
		}
		acc.Inc(p.Row, p.Col, 0, w)
	}
}

// HoughVoter is the 3D (row, col, radius) scheme. Each edge pixel votes for
// every center that would put it on a circle of radius r, for r in
// [MinRadius, MaxRadius). Radius index k equals r.
type HoughVoter struct {
	MinRadius  int
	MaxRadius  int
	Projection Projection
	Workers    int

	// Weight is WeightConstant or WeightMagnitude.
	Weight    VoteWeight
	Magnitude *image.Gray
}

var _ Voter = (*HoughVoter)(nil)

// ringOffset is a (row, col) displacement from a center to a pixel on a
// circle of some radius.
type ringOffset struct {
	dr, dc int
}

// ringOffsets rasterizes a circle of radius r: every integer offset whose
// rounded Euclidean length is exactly r. Radius 0 is the center itself.
func ringOffsets(r int) []ringOffset {
	if r <= 0 {
		return []ringOffset{{0, 0}}
	}
	var ring []ringOffset
	for dr := -r; dr <= r; dr++ {
		for dc := -r; dc <= r; dc++ {
			if int(math.Round(math.Hypot(float64(dr), float64(dc)))) == r {
				ring = append(ring, ringOffset{dr, dc})
			}
		}
	}
	return ring
}

// Bounds returns the effective radius range for an image of the given size.
// A non-positive MaxRadius selects half the shorter side; radii beyond the
// image diagonal cannot produce in-frame votes and are clamped.
func (v *HoughVoter) Bounds(rows, cols int) (minR, maxR int) {
	maxR = v.MaxRadius
	if maxR <= 0 {
		maxR = rows
		if cols < maxR {
			maxR = cols
		}
		maxR /= 2
		if maxR < 1 {
			maxR = 1
		}
	}
	diag := int(math.Ceil(math.Hypot(float64(rows), float64(cols)))) + 1
	if maxR > diag {
		monitoring.Debugf("clamping max radius %d to image diagonal %d", maxR, diag)
		maxR = diag
	}
	minR = v.MinRadius
	if minR < 0 {
		minR = 0
	}
	if minR >= maxR {
		monitoring.Debugf("min radius %d not below max radius %d, using 0", minR, maxR)
		minR = 0
	}
	return minR, maxR
}

// Build returns a rows×cols×maxRadius accumulator.
func (v *HoughVoter) Build(points []imaging.Pixel, rows, cols int) *Accumulator {
	minR, maxR := v.Bounds(rows, cols)
	acc := NewAccumulator3D(rows, cols, maxR)

	var rings [][]ringOffset
	if v.Projection == ProjectionCircle {
		rings = make([][]ringOffset, maxR)
		for r := minR; r < maxR; r++ {
			rings[r] = ringOffsets(r)
		}
	}

	monitoring.Debugf("hough voting: %d edge pixels, radii [%d, %d), workers %d",
		len(points), minR, maxR, v.Workers)
	parallelVote(acc, len(points), v.Workers, func(dst *Accumulator, i int) {
		v.vote(dst, points[i], minR, maxR, rings)
	})
	return acc
}

// VoteFrom performs the voting step for a single edge pixel against an
// accumulator produced by Build (or shaped like one).
func (v *HoughVoter) VoteFrom(acc *Accumulator, p imaging.Pixel) {
	minR, maxR := v.Bounds(acc.Rows, acc.Cols)
	if maxR > acc.Radii {
		maxR = acc.Radii
	}
	var rings [][]ringOffset
	if v.Projection == ProjectionCircle {
		rings = make([][]ringOffset, maxR)
		for r := minR; r < maxR; r++ {
			rings[r] = ringOffsets(r)
		}
	}
	v.vote(acc, p, minR, maxR, rings)
}

func (v *HoughVoter) vote(acc *Accumulator, p imaging.Pixel, minR, maxR int, rings [][]ringOffset) {
	w := 1.0
	if v.Weight == WeightMagnitude {
		w = pixelWeight(v.Magnitude, p)
	}
	for r := minR; r < maxR; r++ {
		if v.Projection == ProjectionDiagonal {
			acc.Inc(p.Row+r, p.Col+r, r, w)
			continue
		}
		for _, o := range rings[r] {
			acc.Inc(p.Row-o.dr, p.Col-o.dc, r, w)
		}
	}
}

// parallelVote runs step for every reference index in [0, n). With more than
// one worker the indices are split into contiguous chunks, each voting into a
// private accumulator; the partials are summed into acc afterwards so no cell
// is written concurrently.
func parallelVote(acc *Accumulator, n, workers int, step func(dst *Accumulator, i int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			step(acc, i)
		}
		return
	}
	if workers > n {
		workers = n
	}

	partials := make([]*Accumulator, workers)
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		partial := acc.emptyLike()
		partials[w] = partial
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				step(partial, i)
			}
			return nil
		})
	}
	// Workers never fail; Wait is only the join point.
	_ = g.Wait()

	for _, partial := range partials {
		acc.Add(partial)
	}
}
