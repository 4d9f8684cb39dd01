package mosaic

import (
	"image"
	"math"
)

// Region is a half-open integer pixel rectangle [X0, X1) x [Y0, Y1).
// A Region with zero area is valid and produces no mutation.
type Region struct {
	X0, Y0, X1, Y1 int
}

// Dx returns the region width.
func (r Region) Dx() int { return r.X1 - r.X0 }

// Dy returns the region height.
func (r Region) Dy() int { return r.Y1 - r.Y0 }

// Empty reports whether the region contains no pixels.
func (r Region) Empty() bool { return r.X0 >= r.X1 || r.Y0 >= r.Y1 }

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle { return image.Rect(r.X0, r.Y0, r.X1, r.Y1) }

// Clip intersects box with [0, frameWidth) x [0, frameHeight).
//
// The lower edges are floored and the upper edges ceiled, so a partially
// covered edge pixel is always included. Degenerate, non-finite or fully
// out-of-frame boxes clip to the zero Region.
func Clip(box BoundingBox, frameWidth, frameHeight int) Region {
	left, top := float64(box.Left), float64(box.Top)
	right, bottom := left+float64(box.Width), top+float64(box.Height)
	if !finite(left) || !finite(top) || !finite(right) || !finite(bottom) {
		return Region{}
	}

	r := Region{
		X0: clampEdge(math.Floor(left), frameWidth),
		Y0: clampEdge(math.Floor(top), frameHeight),
		X1: clampEdge(math.Ceil(right), frameWidth),
		Y1: clampEdge(math.Ceil(bottom), frameHeight),
	}
	if r.Empty() {
		return Region{}
	}
	return r
}

// clampEdge clamps an integral edge coordinate to [0, limit] before
// conversion so huge coordinates cannot overflow int.
func clampEdge(v float64, limit int) int {
	if v <= 0 {
		return 0
	}
	if v >= float64(limit) {
		return limit
	}
	return int(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
