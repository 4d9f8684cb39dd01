package mosaic

import (
	"errors"
	"fmt"
)

// Errors returned by Apply.
var (
	// ErrInvalidFrame is returned when the frame buffer is missing, has
	// non-positive dimensions, or its pitch is too small for its width.
	// The frame is not touched.
	ErrInvalidFrame = errors.New("mosaic: invalid frame")

	// ErrInvalidBoxArray is returned when a flat box array is not a whole
	// number of [left, top, width, height] quadruples, or the box count is
	// negative. The frame is not touched.
	ErrInvalidBoxArray = errors.New("mosaic: invalid box array")

	// ErrExecutionFailure is returned when the execution backend fails while
	// processing a region. Regions processed before the failing one stay
	// pixelated. Use errors.As with *RegionError to find the failing region.
	ErrExecutionFailure = errors.New("mosaic: execution failure")

	// ErrFallbackToCPU indicates the accelerator cannot handle this frame.
	// The engine transparently falls back to the CPU kernel.
	ErrFallbackToCPU = errors.New("mosaic: falling back to CPU kernel")
)

// RegionError reports an execution failure for a single region.
type RegionError struct {
	// Index is the position of the failing box in the caller's box list.
	Index int

	// Err is the underlying backend error.
	Err error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("mosaic: region %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *RegionError) Unwrap() error { return e.Err }

// Is reports RegionError as an ErrExecutionFailure.
func (e *RegionError) Is(target error) bool {
	return target == ErrExecutionFailure
}
