package model

import "math"

// Region is an axis-aligned bounding box in frame-pixel space.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in square pixels. Degenerate boxes have zero area.
func (r Region) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the box center.
func (r Region) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// Contains reports whether the point lies inside the box, edges included.
func (r Region) Contains(x, y float64) bool {
	return x >= float64(r.X) && x <= float64(r.X+r.Width) &&
		y >= float64(r.Y) && y <= float64(r.Y+r.Height)
}

// Intersect returns the overlapping part of two regions, or a zero Region.
func (r Region) Intersect(o Region) Region {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.Width, o.X+o.Width)
	y1 := min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Region{}
	}
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// IoU returns the intersection-over-union of two regions in [0,1].
func (r Region) IoU(o Region) float64 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return math.Min(1, float64(inter)/float64(union))
}

// Overlaps reports whether two regions describe the same place. They match when
// their IoU reaches threshold, or when each box contains the other's center,
// which keeps a box that grew or shrank between frames matched.
func (r Region) Overlaps(o Region, threshold float64) bool {
	if r.IoU(o) >= threshold {
		return true
	}
	rx, ry := r.Center()
	ox, oy := o.Center()
	return r.Contains(ox, oy) && o.Contains(rx, ry)
}
