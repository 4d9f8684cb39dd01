//go:build !nogpu

// Package gpu implements the mosaic pixelate kernel as a wgpu/hal compute
// shader.
//
// This is an internal package; users enable it with
//
//	import _ "github.com/gogpu/mosaic/gpu"
//
// # Dispatch Model
//
// A call uploads the frame into one storage buffer and records one compute
// pass per region into a single command encoder. Each pass binds its own
// uniform block (region bounds, block size, grid phase, pitch) and runs one
// invocation per block in 8x8 workgroups. Passes are separated by implicit
// storage barriers, so overlapping regions resolve in region order. One
// submit and one fence wait cover the whole call, after which only the
// region rows are copied back to the host frame.
//
// Storage and staging buffers are cached per frame size, least recently
// used first out, within MemoryBudgetMB. A frame whose buffers cannot fit
// the budget is declined and runs on the CPU.
//
// Frames already resident in a hal.Buffer are processed in place by
// DispatchBuffer without any host round-trip.
//
// # Limitations
//
// Pixels are addressed as 32-bit words, so only 4-byte packed formats whose
// pitch is a multiple of 4 run here. Everything else is declined with
// mosaic.ErrFallbackToCPU and handled by the CPU kernel.
package gpu
