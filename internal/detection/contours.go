package detection

import (
	"math"
	"math/rand/v2"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

// Contour is one connected group of edge pixels together with the shape
// measurements the pyramid strategy filters on.
type Contour struct {
	// Pixels are the edge pixels of the component.
	Pixels []imaging.Pixel

	// Boundary is the closed outer boundary of the hole-filled component,
	// clockwise, starting at its top-left pixel.
	Boundary []imaging.Pixel

	// Area is the shoelace area enclosed by Boundary.
	Area float64

	// Perimeter is the corrected chain length of Boundary.
	Perimeter float64
}

// Circularity returns 4π·area/perimeter², 1 for a perfect disc. Degenerate
// contours score 0.
func (c *Contour) Circularity() float64 {
	if c.Perimeter <= 0 {
		return 0
	}
	return 4 * math.Pi * c.Area / (c.Perimeter * c.Perimeter)
}

// findContours groups edge pixels into 8-connected components and measures
// each one. Components smaller than minPixels are discarded as noise.
func findContours(mask *imaging.EdgeMask, minPixels int) []Contour {
	visited := make([]bool, mask.Width*mask.Height)
	contours := make([]Contour, 0)

	for row := 0; row < mask.Height; row++ {
		for col := 0; col < mask.Width; col++ {
			if !mask.IsEdge(row, col) || visited[row*mask.Width+col] {
				continue
			}
			pixels := floodFill(mask, visited, row, col)
			if len(pixels) < minPixels {
				continue
			}
			region := fillHoles(pixels)
			boundary := traceBoundary(region)
			contours = append(contours, Contour{
				Pixels:    pixels,
				Boundary:  boundary,
				Area:      shoelaceArea(boundary),
				Perimeter: chainPerimeter(boundary),
			})
		}
	}
	return contours
}

// floodFill collects the 8-connected component containing (row, col). It is
// iterative so large components cannot overflow the stack.
func floodFill(mask *imaging.EdgeMask, visited []bool, startRow, startCol int) []imaging.Pixel {
	stack := []imaging.Pixel{{Row: startRow, Col: startCol}}
	var component []imaging.Pixel

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !mask.IsEdge(p.Row, p.Col) {
			continue
		}
		idx := p.Row*mask.Width + p.Col
		if visited[idx] {
			continue
		}
		visited[idx] = true
		component = append(component, p)

		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				stack = append(stack, imaging.Pixel{Row: p.Row + dr, Col: p.Col + dc})
			}
		}
	}
	return component
}

// region is a component rasterized into its own padded bounding box.
type region struct {
	minRow, minCol int
	rows, cols     int
	in             []bool
}

func (r *region) contains(row, col int) bool {
	lr, lc := row-r.minRow, col-r.minCol
	if lr < 0 || lr >= r.rows || lc < 0 || lc >= r.cols {
		return false
	}
	return r.in[lr*r.cols+lc]
}

// fillHoles rasterizes a component and fills every background pixel that is
// not 4-connected to the outside, turning a ring into a disc.
func fillHoles(pixels []imaging.Pixel) *region {
	minRow, minCol := math.MaxInt, math.MaxInt
	maxRow, maxCol := math.MinInt, math.MinInt
	for _, p := range pixels {
		minRow = min(minRow, p.Row)
		minCol = min(minCol, p.Col)
		maxRow = max(maxRow, p.Row)
		maxCol = max(maxCol, p.Col)
	}

	// One pixel of padding guarantees the border is outside.
	r := &region{
		minRow: minRow - 1,
		minCol: minCol - 1,
		rows:   maxRow - minRow + 3,
		cols:   maxCol - minCol + 3,
	}
	r.in = make([]bool, r.rows*r.cols)
	for _, p := range pixels {
		r.in[(p.Row-r.minRow)*r.cols+(p.Col-r.minCol)] = true
	}

	outside := make([]bool, len(r.in))
	stack := []int{0}
	outside[0] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		row, col := i/r.cols, i%r.cols
		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := row+d[0], col+d[1]
			if nr < 0 || nr >= r.rows || nc < 0 || nc >= r.cols {
				continue
			}
			j := nr*r.cols + nc
			if outside[j] || r.in[j] {
				continue
			}
			outside[j] = true
			stack = append(stack, j)
		}
	}

	for i := range r.in {
		if !outside[i] {
			r.in[i] = true
		}
	}
	return r
}

// mooreDirs lists the 8 neighbors clockwise starting north.
var mooreDirs = [8][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

func dirIndex(dr, dc int) int {
	for i, d := range mooreDirs {
		if d[0] == dr && d[1] == dc {
			return i
		}
	}
	return 6
}

// traceBoundary walks the outer boundary of r with Moore neighbor tracing,
// starting from its top-left pixel. The walk ends when it is about to repeat
// its first move.
func traceBoundary(r *region) []imaging.Pixel {
	var start imaging.Pixel
	found := false
	for i, in := range r.in {
		if in {
			start = imaging.Pixel{Row: r.minRow + i/r.cols, Col: r.minCol + i%r.cols}
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	boundary := []imaging.Pixel{start}
	cur := start
	// The west neighbor of the top-left pixel is always outside.
	back := imaging.Pixel{Row: start.Row, Col: start.Col - 1}
	maxSteps := 4*len(r.in) + 8

	for step := 0; step < maxSteps; step++ {
		from := dirIndex(back.Row-cur.Row, back.Col-cur.Col)
		var next imaging.Pixel
		moved := false
		for i := 1; i <= 8; i++ {
			d := (from + i) % 8
			cand := imaging.Pixel{Row: cur.Row + mooreDirs[d][0], Col: cur.Col + mooreDirs[d][1]}
			if r.contains(cand.Row, cand.Col) {
				prev := (d + 7) % 8
				back = imaging.Pixel{Row: cur.Row + mooreDirs[prev][0], Col: cur.Col + mooreDirs[prev][1]}
				next = cand
				moved = true
				break
			}
		}
		if !moved {
			// Isolated pixel.
			return boundary
		}
		if cur == start && len(boundary) > 1 && next == boundary[1] {
			break
		}
		cur = next
		boundary = append(boundary, cur)
	}

	// The walk re-enters start before stopping; drop the duplicate.
	if n := len(boundary); n > 1 && boundary[n-1] == start {
		boundary = boundary[:n-1]
	}
	return boundary
}

// shoelaceArea returns the area of the closed polygon through the pixel
// centers.
func shoelaceArea(boundary []imaging.Pixel) float64 {
	n := len(boundary)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		a, b := boundary[i], boundary[(i+1)%n]
		sum += float64(a.Col*b.Row - b.Col*a.Row)
	}
	return math.Abs(sum) / 2
}

// Kulpa's chain-code weights; plain 1/√2 steps overestimate the length of a
// digitized curve by about 6%.
const (
	kulpaEven = 0.9481
	kulpaOdd  = 1.3408
)

// chainPerimeter returns the corrected length of the closed chain.
func chainPerimeter(boundary []imaging.Pixel) float64 {
	n := len(boundary)
	if n < 2 {
		return 0
	}
	var even, odd int
	for i := 0; i < n; i++ {
		a, b := boundary[i], boundary[(i+1)%n]
		if a.Row != b.Row && a.Col != b.Col {
			odd++
		} else {
			even++
		}
	}
	return kulpaEven*float64(even) + kulpaOdd*float64(odd)
}

type enclosing struct {
	x, y, r float64
}

const enclosingEps = 1e-7

func (c enclosing) contains(x, y float64) bool {
	return math.Hypot(x-c.x, y-c.y) <= c.r+enclosingEps
}

func circleFrom2(ax, ay, bx, by float64) enclosing {
	x, y := (ax+bx)/2, (ay+by)/2
	return enclosing{x, y, math.Hypot(ax-x, ay-y)}
}

func circleFrom3(ax, ay, bx, by, cx, cy float64) enclosing {
	d := 2 * (ax*(by-cy) + bx*(cy-ay) + cx*(ay-by))
	if math.Abs(d) < 1e-12 {
		// Collinear: the widest pair spans the other point.
		best := circleFrom2(ax, ay, bx, by)
		for _, c := range []enclosing{circleFrom2(ax, ay, cx, cy), circleFrom2(bx, by, cx, cy)} {
			if c.r > best.r {
				best = c
			}
		}
		return best
	}
	a2, b2, c2 := ax*ax+ay*ay, bx*bx+by*by, cx*cx+cy*cy
	x := (a2*(by-cy) + b2*(cy-ay) + c2*(ay-by)) / d
	y := (a2*(cx-bx) + b2*(ax-cx) + c2*(bx-ax)) / d
	return enclosing{x, y, math.Hypot(ax-x, ay-y)}
}

// minEnclosingCircle is Welzl's randomized incremental algorithm, expected
// O(n). The shuffle uses a fixed seed so results are reproducible. Returns
// the center as (col, row) and the radius.
func minEnclosingCircle(points []imaging.Pixel) (x, y, r float64) {
	if len(points) == 0 {
		return 0, 0, 0
	}
	pts := make([][2]float64, len(points))
	for i, p := range points {
		pts[i] = [2]float64{float64(p.Col), float64(p.Row)}
	}
	rng := rand.New(rand.NewPCG(1, 2))
	rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })

	c := enclosing{pts[0][0], pts[0][1], 0}
	for i := 1; i < len(pts); i++ {
		if c.contains(pts[i][0], pts[i][1]) {
			continue
		}
		c = enclosing{pts[i][0], pts[i][1], 0}
		for j := 0; j < i; j++ {
			if c.contains(pts[j][0], pts[j][1]) {
				continue
			}
			c = circleFrom2(pts[i][0], pts[i][1], pts[j][0], pts[j][1])
			for k := 0; k < j; k++ {
				if c.contains(pts[k][0], pts[k][1]) {
					continue
				}
				c = circleFrom3(pts[i][0], pts[i][1], pts[j][0], pts[j][1], pts[k][0], pts[k][1])
			}
		}
	}
	return c.x, c.y, c.r
}
