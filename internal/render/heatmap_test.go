package render

import (
	"testing"

	"github.com/ironsheep/hough-circles/internal/hough"
)

func TestAccumulatorHeatmap(t *testing.T) {
	acc := hough.NewAccumulator3D(20, 30, 5)
	acc.Inc(10, 15, 3, 9)
	acc.Inc(4, 4, 3, 2)

	img, err := AccumulatorHeatmap(acc, 3, 200, 150)
	if err != nil {
		t.Fatalf("AccumulatorHeatmap failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("size: got %dx%d, want 200x150", b.Dx(), b.Dy())
	}
}

func TestAccumulatorHeatmap_ConstantPlane(t *testing.T) {
	acc := hough.NewAccumulator2D(8, 8)
	if _, err := AccumulatorHeatmap(acc, 0, 100, 100); err != nil {
		t.Fatalf("constant plane should still render: %v", err)
	}
}

func TestAccumulatorHeatmap_Errors(t *testing.T) {
	acc := hough.NewAccumulator3D(4, 4, 2)
	tests := []struct {
		name string
		acc  *hough.Accumulator
		k    int
		w, h int
	}{
		{"nil accumulator", nil, 0, 10, 10},
		{"empty accumulator", hough.NewAccumulator2D(0, 5), 0, 10, 10},
		{"radius out of range", acc, 2, 10, 10},
		{"negative radius", acc, -1, 10, 10},
		{"zero size", acc, 0, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AccumulatorHeatmap(tt.acc, tt.k, tt.w, tt.h); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBestRadiusSlice(t *testing.T) {
	acc := hough.NewAccumulator3D(6, 6, 4)
	acc.Inc(1, 1, 1, 3)
	acc.Inc(2, 3, 2, 7)
	if got := BestRadiusSlice(acc); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
	if got := BestRadiusSlice(hough.NewAccumulator3D(3, 3, 3)); got != 0 {
		t.Errorf("empty accumulator: got %d, want 0", got)
	}
}
