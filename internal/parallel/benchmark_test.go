package parallel

import (
	"fmt"
	"image"
	"runtime"
	"testing"
)

// =============================================================================
// Component Benchmarks - WorkerPool
// =============================================================================

// BenchmarkWorkerPool_Create benchmarks creating a worker pool.
func BenchmarkWorkerPool_Create(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		pool := NewWorkerPool(0) // Use GOMAXPROCS
		pool.Close()
	}
}

// BenchmarkWorkerPool_ExecuteAll benchmarks dispatch overhead for empty tasks.
func BenchmarkWorkerPool_ExecuteAll(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(formatCount(n), func(b *testing.B) {
			pool := NewWorkerPool(0)
			defer pool.Close()

			tasks := make([]Task, n)
			for i := range tasks {
				tasks[i] = func() error { return nil }
			}

			b.ReportAllocs()
			for b.Loop() {
				_ = pool.ExecuteAll(tasks)
			}
		})
	}
}

// BenchmarkWorkerPool_BlockRows benchmarks row tasks shaped like a region
// pixelation: one task per block row of a 512x512 RGBA region.
func BenchmarkWorkerPool_BlockRows(b *testing.B) {
	const stride = 512 * 4
	buf := make([]byte, stride*512)
	g := BlockGrid{Bounds: image.Rect(0, 0, 512, 512), Size: 16, OffsetX: 5, OffsetY: 9}

	for _, workers := range []int{1, 2, 4, runtime.GOMAXPROCS(0)} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			pool := NewWorkerPool(workers)
			defer pool.Close()

			tasks := make([]Task, g.Rows())
			for row := range tasks {
				rb := g.RowBounds(row)
				tasks[row] = func() error {
					for y := rb.Min.Y; y < rb.Max.Y; y++ {
						clear(buf[y*stride+rb.Min.X*4 : y*stride+rb.Max.X*4])
					}
					return nil
				}
			}

			b.SetBytes(int64(len(buf)))
			for b.Loop() {
				_ = pool.ExecuteAll(tasks)
			}
		})
	}
}

// =============================================================================
// Component Benchmarks - BlockGrid
// =============================================================================

func BenchmarkBlockGrid_Walk(b *testing.B) {
	g := BlockGrid{Bounds: image.Rect(100, 100, 1820, 980), Size: 7, OffsetX: 3, OffsetY: 6}
	b.ReportAllocs()
	for b.Loop() {
		area := 0
		for row := range g.Rows() {
			for col := range g.Cols() {
				area += g.Block(col, row).Dx()
			}
		}
		_ = area
	}
}

// formatCount names a task count for benchmark sub-tests.
func formatCount(n int) string {
	switch {
	case n >= 1000:
		return "Large"
	case n >= 100:
		return "Medium"
	default:
		return "Small"
	}
}
