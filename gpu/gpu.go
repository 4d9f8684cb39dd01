//go:build !nogpu

// Package gpu registers the GPU pixelate accelerator.
//
// Import this package to run the mosaic kernel as a wgpu/hal compute shader
// for 4-byte pixel formats. Other formats keep using the CPU kernel.
//
// If GPU initialization fails (no Vulkan/Metal/DX12 available), the
// accelerator stays registered but declines every frame, so pixelation
// falls back to CPU.
//
// Usage:
//
//	import _ "github.com/gogpu/mosaic/gpu" // enable GPU pixelation
package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/mosaic"
	gpuimpl "github.com/gogpu/mosaic/internal/gpu"
	"github.com/gogpu/wgpu/hal"
)

// ErrNilProvider is returned when a nil DeviceProvider is passed.
var ErrNilProvider = errors.New("gpu: nil DeviceProvider")

var accel = &gpuimpl.MosaicAccelerator{}

func init() {
	if err := mosaic.RegisterAccelerator(accel); err != nil {
		mosaic.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider configures the GPU accelerator to use a shared GPU device
// from an external provider, typically the video pipeline's own device. This
// avoids creating a separate GPU instance and lets ApplyDevice work on
// buffers the pipeline allocated.
//
// The provider must also expose HalDevice() any and HalQueue() any for
// direct HAL access.
func SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	if provider == nil {
		return ErrNilProvider
	}
	return mosaic.SetAcceleratorDeviceProvider(provider)
}

// MemoryStats describes the accelerator's cached frame buffers.
type MemoryStats = gpuimpl.MemoryStats

// Stats returns the accelerator's frame buffer cache statistics. All fields
// are zero while no device is attached.
func Stats() MemoryStats {
	return accel.MemoryStats()
}

// DeviceFrame is a frame resident in GPU memory. The caller owns Buffer;
// ApplyDevice never retains or destroys it.
type DeviceFrame struct {
	// Buffer holds the pixels and must have storage usage.
	Buffer hal.Buffer

	// Size is the byte size Buffer was created with. It must cover every
	// row up to the last pixel; the last row needs no padding.
	Size uint64

	Width  int
	Height int

	// Pitch is the distance in bytes between rows. Must be a multiple of 4.
	Pitch int

	// Format must be a 4-byte packed format.
	Format mosaic.Format
}

// Validate checks the frame geometry. Every failure wraps mosaic.ErrInvalidFrame.
func (f DeviceFrame) Validate() error {
	switch {
	case f.Buffer == nil:
		return fmt.Errorf("%w: nil device buffer", mosaic.ErrInvalidFrame)
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: dimensions %dx%d", mosaic.ErrInvalidFrame, f.Width, f.Height)
	case f.Format.BytesPerPixel() != 4 || f.Format.Info().Planar:
		return fmt.Errorf("%w: device frames need a 4-byte format, got %s", mosaic.ErrInvalidFrame, f.Format)
	case f.Pitch < f.Format.RowBytes(f.Width):
		return fmt.Errorf("%w: pitch %d < %d", mosaic.ErrInvalidFrame, f.Pitch, f.Format.RowBytes(f.Width))
	case f.Pitch%4 != 0:
		return fmt.Errorf("%w: pitch %d is not a multiple of 4", mosaic.ErrInvalidFrame, f.Pitch)
	}
	need, ok := f.Format.AddressableBytes(f.Width, f.Height, f.Pitch)
	if !ok {
		return fmt.Errorf("%w: %d rows of pitch %d overflow", mosaic.ErrInvalidFrame, f.Height, f.Pitch)
	}
	if f.Size < uint64(need) {
		return fmt.Errorf("%w: device buffer holds %d bytes, need %d", mosaic.ErrInvalidFrame, f.Size, need)
	}
	return nil
}

// bindSize returns the number of bytes the kernel addresses. The frame must
// be valid.
func (f DeviceFrame) bindSize() uint64 {
	need, _ := f.Format.AddressableBytes(f.Width, f.Height, f.Pitch)
	return uint64(need) //nolint:gosec // validated positive
}

// ApplyDevice pixelates boxes inside a GPU-resident frame, in place, with no
// host round-trip. Block geometry matches mosaic.Apply on the default engine
// for the same boxes and seed.
//
// There is no CPU fallback: without a ready GPU device the call fails with
// mosaic.ErrExecutionFailure.
func ApplyDevice(frame DeviceFrame, boxes mosaic.Boxes, seed uint32) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	jobs := mosaic.PlanRegions(frame.Width, frame.Height, boxes, seed, mosaic.Default().BlockConfig())
	if len(jobs) == 0 {
		return nil
	}

	err := accel.DispatchBuffer(frame.Buffer, frame.bindSize(), frame.Pitch, jobs)
	if err == nil {
		return nil
	}
	var re *mosaic.RegionError
	if errors.As(err, &re) {
		return err
	}
	return &mosaic.RegionError{Index: jobs[0].Index, Err: err}
}
