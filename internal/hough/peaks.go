package hough

import (
	"sort"
)

// Peak is an accepted local maximum.
type Peak struct {
	Row    int     `json:"row"`
	Col    int     `json:"col"`
	Radius int     `json:"radius"`
	Value  float64 `json:"value"`
}

// DefaultNeighborCount is the full 3×3×3 cube minus its center.
const DefaultNeighborCount = 26

// isqrt returns ⌊√n⌋ for n >= 0.
func isqrt(n int) int {
	s := 0
	for (s+1)*(s+1) <= n {
		s++
	}
	return s
}

// icbrt returns ⌊∛n⌋ for n >= 0.
func icbrt(n int) int {
	s := 0
	for (s+1)*(s+1)*(s+1) <= n {
		s++
	}
	return s
}

// WindowHalf returns the half-width of the neighborhood window for a
// neighbor count n. In 2D the window side is ⌊√n⌋; in 3D it is ⌊∛(n+1)⌋
// so that n = 26 is the 3×3×3 cube. The window spans center±half.
func WindowHalf(n int, volumetric bool) int {
	if n <= 0 {
		return 0
	}
	if volumetric {
		return icbrt(n+1) / 2
	}
	return isqrt(n) / 2
}

// Window returns the inclusive index range [lo, hi] of a window of the given
// half-width around center on an axis of length dim. A window that would
// leave the axis is shifted inward so it keeps its full extent; it is only
// truncated when dim itself is smaller than the window. The result always
// lies in [0, dim) for dim > 0.
func Window(center, half, dim int) (lo, hi int) {
	if dim <= 0 {
		return 0, -1
	}
	if center < 0 {
		center = 0
	} else if center >= dim {
		center = dim - 1
	}
	if half < 0 {
		half = 0
	}

	lo, hi = center-half, center+half
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > dim-1 {
		lo -= hi - (dim - 1)
		hi = dim - 1
	}
	if lo < 0 {
		lo = 0
	}
	return lo, hi
}

// IsPeak reports whether no cell in the clamped window around (row, col, k),
// other than the cell itself, holds a strictly greater value. Ties survive.
// Coordinates outside the accumulator are never peaks.
func IsPeak(acc *Accumulator, row, col, k, neighborCount int) bool {
	if !acc.InBounds(row, col, k) {
		return false
	}
	half := WindowHalf(neighborCount, acc.Is3D())
	v := acc.Cells[acc.Index(row, col, k)]

	r0, r1 := Window(row, half, acc.Rows)
	c0, c1 := Window(col, half, acc.Cols)
	k0, k1 := 0, 0
	if acc.Is3D() {
		k0, k1 = Window(k, half, acc.Radii)
	}

	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			base := (r*acc.Cols + c) * acc.Radii
			for kk := k0; kk <= k1; kk++ {
				if r == row && c == col && kk == k {
					continue
				}
				if acc.Cells[base+kk] > v {
					return false
				}
			}
		}
	}
	return true
}

// PeakFinder scans an accumulator for local maxima.
type PeakFinder struct {
	// NeighborCount sizes the window; see WindowHalf.
	NeighborCount int

	// MinValue rejects cells at or below it before the window test, so an
	// all-zero accumulator has no peaks.
	MinValue float64
}

// Find returns every accepted peak in row-major scan order (radius
// innermost). Adjacent peaks that tie are all reported.
func (f *PeakFinder) Find(acc *Accumulator) []Peak {
	var peaks []Peak
	for row := 0; row < acc.Rows; row++ {
		for col := 0; col < acc.Cols; col++ {
			base := (row*acc.Cols + col) * acc.Radii
			for k := 0; k < acc.Radii; k++ {
				v := acc.Cells[base+k]
				if v <= f.MinValue {
					continue
				}
				if IsPeak(acc, row, col, k, f.NeighborCount) {
					peaks = append(peaks, Peak{Row: row, Col: col, Radius: k, Value: v})
				}
			}
		}
	}
	return peaks
}

// Strongest returns the n highest-valued peaks, keeping scan order among
// equal values. n <= 0 returns all peaks. The input is not modified.
func Strongest(peaks []Peak, n int) []Peak {
	out := make([]Peak, len(peaks))
	copy(out, peaks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
