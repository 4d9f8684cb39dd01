// Package parallel provides block-based parallel execution infrastructure
// for the mosaic engine.
//
// A region is divided into square blocks that can be processed independently
// in parallel. Key pieces:
//
//   - BlockGrid: phase-shifted block partition of a rectangle
//   - WorkerPool: work-stealing goroutine pool with error and panic reporting
//
// Thread safety: BlockGrid is an immutable value. WorkerPool is safe for
// concurrent use.
package parallel

import "image"

// BlockGrid partitions a rectangle into Size x Size blocks.
//
// The grid origin sits (OffsetX, OffsetY) pixels before the rectangle's
// top-left corner, so the first row and column of blocks may be narrower
// than Size. Edge blocks are clipped to the rectangle.
//
// Blocks are addressed by (column, row), row-major, starting at (0, 0).
type BlockGrid struct {
	// Bounds is the rectangle being partitioned.
	Bounds image.Rectangle

	// Size is the block edge in pixels. Must be >= 1.
	Size int

	// OffsetX and OffsetY are the grid phase, in [0, Size).
	OffsetX int
	OffsetY int
}

// Cols returns the number of block columns intersecting Bounds.
func (g BlockGrid) Cols() int {
	return spanCount(g.Bounds.Dx(), g.OffsetX, g.Size)
}

// Rows returns the number of block rows intersecting Bounds.
func (g BlockGrid) Rows() int {
	return spanCount(g.Bounds.Dy(), g.OffsetY, g.Size)
}

// Len returns the total number of blocks.
func (g BlockGrid) Len() int {
	return g.Cols() * g.Rows()
}

// Block returns the pixel rectangle of block (col, row) clipped to Bounds.
// Out-of-range indices return an empty rectangle.
func (g BlockGrid) Block(col, row int) image.Rectangle {
	x0, x1 := span(g.Bounds.Min.X, g.Bounds.Max.X, g.OffsetX, g.Size, col)
	y0, y1 := span(g.Bounds.Min.Y, g.Bounds.Max.Y, g.OffsetY, g.Size, row)
	if x0 >= x1 || y0 >= y1 {
		return image.Rectangle{}
	}
	return image.Rect(x0, y0, x1, y1)
}

// RowBounds returns the rectangle covered by all blocks of one block row.
func (g BlockGrid) RowBounds(row int) image.Rectangle {
	y0, y1 := span(g.Bounds.Min.Y, g.Bounds.Max.Y, g.OffsetY, g.Size, row)
	if y0 >= y1 || g.Bounds.Dx() <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(g.Bounds.Min.X, y0, g.Bounds.Max.X, y1)
}

// spanCount returns how many blocks of size cover extent pixels when the
// grid starts offset pixels early.
func spanCount(extent, offset, size int) int {
	if extent <= 0 || size <= 0 {
		return 0
	}
	return (extent + offset + size - 1) / size
}

// span returns the clipped [lo, hi) pixel range of block i.
func span(minV, maxV, offset, size, i int) (lo, hi int) {
	if i < 0 || size <= 0 {
		return 0, 0
	}
	lo = max(minV+i*size-offset, minV)
	hi = min(minV+(i+1)*size-offset, maxV)
	return lo, hi
}
