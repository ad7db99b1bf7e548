package model

import (
	"math"
	"testing"
)

func TestRegion_Area(t *testing.T) {
	if got := (Region{X: 1, Y: 1, Width: 10, Height: 20}).Area(); got != 200 {
		t.Errorf("Expected area 200, got %d", got)
	}
	if got := (Region{Width: -5, Height: 10}).Area(); got != 0 {
		t.Errorf("Expected degenerate area 0, got %d", got)
	}
}

func TestRegion_IoU(t *testing.T) {
	a := Region{X: 0, Y: 0, Width: 10, Height: 10}
	b := Region{X: 5, Y: 0, Width: 10, Height: 10}

	// intersection 50, union 150
	if got := a.IoU(b); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("Expected IoU 1/3, got %f", got)
	}
	if got := a.IoU(a); got != 1 {
		t.Errorf("Expected IoU 1 with itself, got %f", got)
	}
	if got := a.IoU(Region{X: 100, Y: 100, Width: 5, Height: 5}); got != 0 {
		t.Errorf("Expected IoU 0 for disjoint boxes, got %f", got)
	}
}

func TestRegion_Overlaps_Jitter(t *testing.T) {
	base := Region{X: 100, Y: 100, Width: 80, Height: 160}
	jittered := Region{X: 104, Y: 97, Width: 78, Height: 165}

	if !base.Overlaps(jittered, 0.5) {
		t.Error("Jittered box should overlap the original")
	}
	if !jittered.Overlaps(base, 0.5) {
		t.Error("Overlap should be symmetric")
	}
}

func TestRegion_Overlaps_GrownBox(t *testing.T) {
	small := Region{X: 100, Y: 100, Width: 40, Height: 40}
	grown := Region{X: 80, Y: 80, Width: 90, Height: 90}

	if small.IoU(grown) >= 0.5 {
		t.Fatalf("Test precondition: IoU should be below threshold, got %f", small.IoU(grown))
	}
	if !small.Overlaps(grown, 0.5) {
		t.Error("Boxes containing each other's centers should overlap")
	}
}

func TestRegion_Overlaps_Distinct(t *testing.T) {
	left := Region{X: 0, Y: 0, Width: 50, Height: 50}
	right := Region{X: 60, Y: 0, Width: 50, Height: 50}

	if left.Overlaps(right, 0.5) {
		t.Error("Separate boxes should not overlap")
	}
}
