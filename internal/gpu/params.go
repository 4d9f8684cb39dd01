//go:build !nogpu

package gpu

import (
	"encoding/binary"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/internal/parallel"
)

// paramsSize is the byte size of PixelateParams on the GPU.
const paramsSize = 32

// workgroupSize is the edge of the 8x8 workgroup declared in pixelate.wgsl.
const workgroupSize = 8

// PixelateParams is the per-region uniform block.
// Must match Params in pixelate.wgsl.
type PixelateParams struct {
	PitchWords uint32 // Row pitch in 32-bit words
	X0         uint32 // Region left edge (inclusive)
	Y0         uint32 // Region top edge (inclusive)
	X1         uint32 // Region right edge (exclusive)
	Y1         uint32 // Region bottom edge (exclusive)
	BlockSize  uint32 // Block edge in pixels
	OffsetX    uint32 // Grid phase, in [0, BlockSize)
	OffsetY    uint32 // Grid phase, in [0, BlockSize)
}

// newPixelateParams builds the uniform block of one job on a frame whose
// rows are pitch bytes apart.
//
//nolint:gosec // frame geometry is validated non-negative and fits uint32
func newPixelateParams(job mosaic.RegionJob, pitch int) PixelateParams {
	r, p := job.Region, job.Pattern
	return PixelateParams{
		PitchWords: uint32(pitch / 4),
		X0:         uint32(r.X0),
		Y0:         uint32(r.Y0),
		X1:         uint32(r.X1),
		Y1:         uint32(r.Y1),
		BlockSize:  uint32(p.Size),
		OffsetX:    uint32(p.OffsetX),
		OffsetY:    uint32(p.OffsetY),
	}
}

func (p PixelateParams) bytes() []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.PitchWords)
	binary.LittleEndian.PutUint32(buf[4:], p.X0)
	binary.LittleEndian.PutUint32(buf[8:], p.Y0)
	binary.LittleEndian.PutUint32(buf[12:], p.X1)
	binary.LittleEndian.PutUint32(buf[16:], p.Y1)
	binary.LittleEndian.PutUint32(buf[20:], p.BlockSize)
	binary.LittleEndian.PutUint32(buf[24:], p.OffsetX)
	binary.LittleEndian.PutUint32(buf[28:], p.OffsetY)
	return buf
}

// workgroups returns the dispatch size covering every block of job, one
// invocation per block.
//
//nolint:gosec // block counts are bounded by frame dimensions
func workgroups(job mosaic.RegionJob) (x, y uint32) {
	g := parallel.BlockGrid{
		Bounds:  job.Region.Rect(),
		Size:    job.Pattern.Size,
		OffsetX: job.Pattern.OffsetX,
		OffsetY: job.Pattern.OffsetY,
	}
	cols, rows := uint32(g.Cols()), uint32(g.Rows())
	return (cols + workgroupSize - 1) / workgroupSize, (rows + workgroupSize - 1) / workgroupSize
}
