package detection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

func maskFrom(rows []string) *imaging.EdgeMask {
	m := imaging.NewEdgeMask(len(rows[0]), len(rows))
	for r, line := range rows {
		for c, ch := range line {
			m.Set(r, c, ch == '#')
		}
	}
	return m
}

func discRegionPixels(cx, cy, radius int) []imaging.Pixel {
	var pixels []imaging.Pixel
	for r := cy - radius; r <= cy+radius; r++ {
		for c := cx - radius; c <= cx+radius; c++ {
			dr, dc := r-cy, c-cx
			if dr*dr+dc*dc <= radius*radius {
				pixels = append(pixels, imaging.Pixel{Row: r, Col: c})
			}
		}
	}
	return pixels
}

func TestFindContours(t *testing.T) {
	mask := maskFrom([]string{
		"##.......",
		"##....#..",
		".......#.",
		"......#.#",
		"#.....##.",
	})

	contours := findContours(mask, 1)
	require.Len(t, contours, 3)
	assert.Len(t, contours[0].Pixels, 4)
	assert.Len(t, contours[1].Pixels, 6, "diagonal neighbors belong to the same contour")
	assert.Len(t, contours[2].Pixels, 1)

	assert.Len(t, findContours(mask, 2), 2, "small contours are dropped")
	assert.Empty(t, findContours(imaging.NewEdgeMask(5, 5), 1))
}

func TestFillHoles(t *testing.T) {
	mask := maskFrom([]string{
		".#####.",
		".#...#.",
		".#...#.",
		".#####.",
	})
	contours := findContours(mask, 1)
	require.Len(t, contours, 1)

	r := fillHoles(contours[0].Pixels)
	for row := 0; row < 4; row++ {
		for col := 1; col <= 5; col++ {
			assert.True(t, r.contains(row, col), "(%d,%d) should be filled", row, col)
		}
	}
	assert.False(t, r.contains(0, 0))
	assert.False(t, r.contains(0, 6))
}

func TestFillHoles_OpenShapeStaysOpen(t *testing.T) {
	mask := maskFrom([]string{
		"#...#",
		"#...#",
		"#####",
	})
	r := fillHoles(findContours(mask, 1)[0].Pixels)
	assert.False(t, r.contains(0, 2), "a U shape has no enclosed hole")
}

func TestTraceBoundary_Square(t *testing.T) {
	mask := maskFrom([]string{
		"....",
		".###",
		".###",
		".###",
	})
	contours := findContours(mask, 1)
	require.Len(t, contours, 1)

	want := []imaging.Pixel{
		{Row: 1, Col: 1}, {Row: 1, Col: 2}, {Row: 1, Col: 3},
		{Row: 2, Col: 3}, {Row: 3, Col: 3}, {Row: 3, Col: 2},
		{Row: 3, Col: 1}, {Row: 2, Col: 1},
	}
	assert.Equal(t, want, contours[0].Boundary)
	assert.Equal(t, 4.0, contours[0].Area)
	assert.InDelta(t, 8*kulpaEven, contours[0].Perimeter, 1e-9)
}

func TestTraceBoundary_Degenerate(t *testing.T) {
	single := fillHoles([]imaging.Pixel{{Row: 3, Col: 3}})
	assert.Equal(t, []imaging.Pixel{{Row: 3, Col: 3}}, traceBoundary(single))

	pair := fillHoles([]imaging.Pixel{{Row: 0, Col: 0}, {Row: 0, Col: 1}})
	assert.Equal(t, []imaging.Pixel{{Row: 0, Col: 0}, {Row: 0, Col: 1}}, traceBoundary(pair))
}

func TestCircularity(t *testing.T) {
	disc := fillHoles(discRegionPixels(30, 30, 15))
	boundary := traceBoundary(disc)
	c := Contour{Boundary: boundary, Area: shoelaceArea(boundary), Perimeter: chainPerimeter(boundary)}
	assert.Greater(t, c.Circularity(), 0.85, "digitized disc")
	assert.Less(t, c.Circularity(), 1.1)

	var bar []imaging.Pixel
	for r := 0; r < 4; r++ {
		for col := 0; col < 40; col++ {
			bar = append(bar, imaging.Pixel{Row: r, Col: col})
		}
	}
	boundary = traceBoundary(fillHoles(bar))
	c = Contour{Boundary: boundary, Area: shoelaceArea(boundary), Perimeter: chainPerimeter(boundary)}
	assert.Less(t, c.Circularity(), 0.5, "long thin bar")

	assert.Zero(t, (&Contour{}).Circularity())
}

func TestMinEnclosingCircle(t *testing.T) {
	tests := []struct {
		name    string
		points  []imaging.Pixel
		x, y, r float64
	}{
		{"square corners", []imaging.Pixel{{Row: 0, Col: 0}, {Row: 0, Col: 10}, {Row: 10, Col: 0}, {Row: 10, Col: 10}, {Row: 5, Col: 5}}, 5, 5, math.Sqrt(50)},
		{"collinear", []imaging.Pixel{{Row: 2, Col: 0}, {Row: 2, Col: 4}, {Row: 2, Col: 10}}, 5, 2, 5},
		{"single point", []imaging.Pixel{{Row: 7, Col: 3}}, 3, 7, 0},
		{"triangle", []imaging.Pixel{{Row: 0, Col: 0}, {Row: 0, Col: 8}, {Row: 4, Col: 4}}, 4, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, r := minEnclosingCircle(tt.points)
			assert.InDelta(t, tt.x, x, 1e-6)
			assert.InDelta(t, tt.y, y, 1e-6)
			assert.InDelta(t, tt.r, r, 1e-6)
		})
	}

	x, y, r := minEnclosingCircle(nil)
	assert.Zero(t, x+y+r)
}

func TestMinEnclosingCircle_ContainsAll(t *testing.T) {
	pixels := discRegionPixels(20, 14, 9)
	x, y, r := minEnclosingCircle(pixels)
	for _, p := range pixels {
		d := math.Hypot(float64(p.Col)-x, float64(p.Row)-y)
		require.LessOrEqual(t, d, r+1e-6)
	}
	assert.InDelta(t, 9, r, 0.5)
}
