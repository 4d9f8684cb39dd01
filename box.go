package mosaic

import "fmt"

// BoundingBox is an axis-aligned rectangle in frame pixel coordinates,
// relative to the top-left corner of the frame.
type BoundingBox struct {
	Left   float32
	Top    float32
	Width  float32
	Height float32
}

// Boxes is an ordered list of bounding boxes. A box's position in the list
// is its region index.
type Boxes []BoundingBox

// ParseBoxes converts a flat [left, top, width, height, ...] array into Boxes.
// The array length must be a multiple of 4.
func ParseBoxes(flat []float32) (Boxes, error) {
	if len(flat)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrInvalidBoxArray, len(flat))
	}
	return ParseBoxesN(flat, len(flat)/4)
}

// ParseBoxesN converts the first n quadruples of a flat box array into Boxes.
// It is the counterpart of a pointer and count pair: n must not be negative
// and flat must hold at least 4*n values.
func ParseBoxesN(flat []float32, n int) (Boxes, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative box count %d", ErrInvalidBoxArray, n)
	}
	if len(flat) < 4*n {
		return nil, fmt.Errorf("%w: %d values for %d boxes", ErrInvalidBoxArray, len(flat), n)
	}
	boxes := make(Boxes, n)
	for i := range boxes {
		q := flat[i*4 : i*4+4]
		boxes[i] = BoundingBox{Left: q[0], Top: q[1], Width: q[2], Height: q[3]}
	}
	return boxes, nil
}

// Flatten returns the boxes as a flat [left, top, width, height, ...] array.
func (b Boxes) Flatten() []float32 {
	flat := make([]float32, 0, len(b)*4)
	for _, box := range b {
		flat = append(flat, box.Left, box.Top, box.Width, box.Height)
	}
	return flat
}
