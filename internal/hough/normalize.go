package hough

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Normalize min-max rescales acc into [outMin, outMax] and returns a new
// accumulator. Ordering between cells is preserved. When every cell holds the
// same value the result is all outMin.
func Normalize(acc *Accumulator, outMin, outMax float64) *Accumulator {
	out := acc.Clone()
	if len(out.Cells) == 0 {
		return out
	}

	lo, hi := acc.Min(), acc.Max()
	if hi == lo {
		for i := range out.Cells {
			out.Cells[i] = outMin
		}
		return out
	}

	scale := (outMax - outMin) / (hi - lo)
	floats.AddConst(-lo, out.Cells)
	floats.Scale(scale, out.Cells)
	floats.AddConst(outMin, out.Cells)

	// (hi-lo)*scale can land one ulp off outMax.
	for i, v := range acc.Cells {
		if v == hi {
			out.Cells[i] = outMax
		}
	}
	return out
}

// RadiusWeighted divides every radius slice by the circumference of its
// circle, so large radii no longer win simply because their rings touch more
// edge pixels. 2D accumulators are returned unchanged (as a copy).
func RadiusWeighted(acc *Accumulator) *Accumulator {
	out := acc.Clone()
	if !acc.Is3D() {
		return out
	}
	for k := 0; k < acc.Radii; k++ {
		circumference := 2 * math.Pi * float64(k)
		if circumference < 1 {
			continue
		}
		for i := k; i < len(out.Cells); i += acc.Radii {
			out.Cells[i] /= circumference
		}
	}
	return out
}
