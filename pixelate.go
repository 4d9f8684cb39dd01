package mosaic

import (
	"image"

	"github.com/gogpu/mosaic/internal/parallel"
)

// pixelateCPU runs jobs in order on the engine's worker pool. Each region
// becomes one batch of tasks, one per block row per plane; the next region
// starts only after the previous batch completes.
func (e *Engine) pixelateCPU(frame Frame, jobs []RegionJob) error {
	planes := frame.planes()
	for _, job := range jobs {
		var tasks []parallel.Task
		for _, p := range planes {
			tasks = appendRowTasks(tasks, p, planeGrid(job, p.shift))
		}
		if err := e.pool.ExecuteAll(tasks); err != nil {
			Logger().Warn("mosaic: region failed", "region", job.Index, "err", err)
			return &RegionError{Index: job.Index, Err: err}
		}
	}
	return nil
}

// planeGrid maps a job onto a plane subsampled by 1<<shift.
func planeGrid(job RegionJob, shift uint) parallel.BlockGrid {
	r, pat := job.Region, job.Pattern
	if shift == 0 {
		return parallel.BlockGrid{
			Bounds:  r.Rect(),
			Size:    pat.Size,
			OffsetX: pat.OffsetX,
			OffsetY: pat.OffsetY,
		}
	}
	// Round the region outwards so every chroma sample touched by a luma
	// pixel of the region is pixelated.
	round := 1<<shift - 1
	size := max(1, pat.Size>>shift)
	return parallel.BlockGrid{
		Bounds:  image.Rect(r.X0>>shift, r.Y0>>shift, (r.X1+round)>>shift, (r.Y1+round)>>shift),
		Size:    size,
		OffsetX: (pat.OffsetX >> shift) % size,
		OffsetY: (pat.OffsetY >> shift) % size,
	}
}

func appendRowTasks(tasks []parallel.Task, p plane, g parallel.BlockGrid) []parallel.Task {
	rows, cols := g.Rows(), g.Cols()
	for row := range rows {
		tasks = append(tasks, func() error {
			for col := range cols {
				fillMean(p, g.Block(col, row))
			}
			return nil
		})
	}
	return tasks
}

// fillMean replaces every pixel of b with the per-channel mean of the pixels
// of b, rounding half up. All reads happen before the first write.
func fillMean(p plane, b image.Rectangle) {
	n := uint32(b.Dx() * b.Dy()) //nolint:gosec // at most MaxBlockSize squared
	if n == 0 {
		return
	}
	bpp := p.bpp
	rowBytes := b.Dx() * bpp

	// 255 * MaxBlockSize^2 fits in 32 bits.
	var sum [4]uint32
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := p.data[y*p.pitch+b.Min.X*bpp:][:rowBytes]
		for i := 0; i < len(row); i += bpp {
			for c := range bpp {
				sum[c] += uint32(row[i+c])
			}
		}
	}

	var mean [4]byte
	for c := range bpp {
		mean[c] = byte((sum[c] + n/2) / n)
	}
	px := mean[:bpp]

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := p.data[y*p.pitch+b.Min.X*bpp:][:rowBytes]
		for i := 0; i < len(row); i += bpp {
			copy(row[i:i+bpp], px)
		}
	}
}
