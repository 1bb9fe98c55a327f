package hough

import (
	"gonum.org/v1/gonum/floats"
)

// Accumulator is a voting grid over (row, col) or (row, col, radius).
//
// Cells are stored row-major with the radius index innermost:
// index = (row*Cols + col)*Radii + k. A 2D accumulator has Radii == 1.
type Accumulator struct {
	Rows  int
	Cols  int
	Radii int
	Cells []float64

	volumetric bool
}

// NewAccumulator2D returns a zeroed (row, col) grid.
func NewAccumulator2D(rows, cols int) *Accumulator {
	return newAccumulator(rows, cols, 1, false)
}

// NewAccumulator3D returns a zeroed (row, col, radius) grid with radius
// indices [0, radii).
func NewAccumulator3D(rows, cols, radii int) *Accumulator {
	if radii < 1 {
		radii = 1
	}
	return newAccumulator(rows, cols, radii, true)
}

func newAccumulator(rows, cols, radii int, volumetric bool) *Accumulator {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Accumulator{
		Rows:       rows,
		Cols:       cols,
		Radii:      radii,
		Cells:      make([]float64, rows*cols*radii),
		volumetric: volumetric,
	}
}

// Is3D reports whether the grid carries a radius axis. A 3D accumulator
// with a single radius is still 3D for peak-window purposes.
func (a *Accumulator) Is3D() bool {
	return a.volumetric
}

// InBounds reports whether (row, col, k) addresses a cell.
func (a *Accumulator) InBounds(row, col, k int) bool {
	return row >= 0 && row < a.Rows &&
		col >= 0 && col < a.Cols &&
		k >= 0 && k < a.Radii
}

// Index returns the flat offset of (row, col, k). The caller must check
// InBounds first.
func (a *Accumulator) Index(row, col, k int) int {
	return (row*a.Cols+col)*a.Radii + k
}

// At returns the value at (row, col, k), or 0 outside the grid.
func (a *Accumulator) At(row, col, k int) float64 {
	if !a.InBounds(row, col, k) {
		return 0
	}
	return a.Cells[a.Index(row, col, k)]
}

// Inc adds w to (row, col, k). Out-of-range coordinates and negative weights
// are rejected, so cells can only grow.
func (a *Accumulator) Inc(row, col, k int, w float64) bool {
	if w < 0 || !a.InBounds(row, col, k) {
		return false
	}
	a.Cells[a.Index(row, col, k)] += w
	return true
}

// Clone returns a deep copy.
func (a *Accumulator) Clone() *Accumulator {
	out := &Accumulator{
		Rows:       a.Rows,
		Cols:       a.Cols,
		Radii:      a.Radii,
		Cells:      make([]float64, len(a.Cells)),
		volumetric: a.volumetric,
	}
	copy(out.Cells, a.Cells)
	return out
}

// emptyLike returns a zeroed accumulator with the same shape.
func (a *Accumulator) emptyLike() *Accumulator {
	return newAccumulator(a.Rows, a.Cols, a.Radii, a.volumetric)
}

// Add merges other into a cell by cell. Shapes must match.
func (a *Accumulator) Add(other *Accumulator) {
	floats.Add(a.Cells, other.Cells)
}

// Max returns the largest cell value, or 0 for an empty grid.
func (a *Accumulator) Max() float64 {
	if len(a.Cells) == 0 {
		return 0
	}
	return floats.Max(a.Cells)
}

// Min returns the smallest cell value, or 0 for an empty grid.
func (a *Accumulator) Min() float64 {
	if len(a.Cells) == 0 {
		return 0
	}
	return floats.Min(a.Cells)
}

// Sum returns the total number of votes cast.
func (a *Accumulator) Sum() float64 {
	return floats.Sum(a.Cells)
}

// Plane copies radius slice k into a row-major rows×cols slice. Out-of-range
// k yields an all-zero plane.
func (a *Accumulator) Plane(k int) []float64 {
	plane := make([]float64, a.Rows*a.Cols)
	if k < 0 || k >= a.Radii {
		return plane
	}
	for i := range plane {
		plane[i] = a.Cells[i*a.Radii+k]
	}
	return plane
}
