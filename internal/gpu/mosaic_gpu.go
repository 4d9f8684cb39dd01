//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNotReady is returned by DispatchBuffer when no GPU device is available.
var ErrNotReady = errors.New("gpu: device not initialized")

// fenceTimeout bounds the wait for one submitted batch.
const fenceTimeout = 5 * time.Second

// MosaicAccelerator runs the pixelate kernel as a wgpu/hal compute shader.
// It implements the mosaic.Accelerator interface.
//
// All regions of a call are recorded as separate compute passes of one
// command encoder and executed with a single submit and fence wait.
type MosaicAccelerator struct {
	mu  sync.Mutex
	log atomic.Pointer[slog.Logger]

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	// buffers caches frame-sized storage and staging buffers per device.
	buffers *bufferCache

	// MemoryBudgetMB bounds the cached frame buffers. Zero selects
	// DefaultMaxMemoryMB. Read when a device is attached.
	MemoryBudgetMB int

	gpuReady       bool
	externalDevice bool // true when using shared device (don't destroy on Close)
}

var _ mosaic.Accelerator = (*MosaicAccelerator)(nil)

func (a *MosaicAccelerator) Name() string { return "mosaic-gpu" }

// CanAccelerate reports whether frame uses 4-byte pixels on word-aligned
// rows and a device is ready.
func (a *MosaicAccelerator) CanAccelerate(frame mosaic.Frame) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gpuReady && wordAddressable(frame.Format, frame.Pitch)
}

// wordAddressable reports whether pixels of format on rows pitch bytes apart
// map one-to-one onto 32-bit words.
func wordAddressable(format mosaic.Format, pitch int) bool {
	return format.BytesPerPixel() == 4 && !format.Info().Planar && pitch%4 == 0
}

// Init opens a GPU device. A missing GPU is not an error: the accelerator
// stays registered and declines every frame until SetDeviceProvider succeeds.
func (a *MosaicAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initGPU(); err != nil {
		a.logger().Warn("gpu-mosaic: GPU init failed, using CPU fallback", "err", err)
	}
	return nil
}

func (a *MosaicAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseBuffers()
	a.destroyPipelines()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.instance = nil
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
}

// SetDeviceProvider switches the accelerator to use a shared GPU device
// from an external provider. The provider must implement HalDevice() any
// and HalQueue() any returning hal.Device and hal.Queue.
func (a *MosaicAccelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu-mosaic: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu-mosaic: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu-mosaic: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseBuffers()
	a.destroyPipelines()
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	a.device = device
	a.queue = queue
	a.externalDevice = true

	if err := a.createPipelines(); err != nil {
		a.gpuReady = false
		return fmt.Errorf("gpu-mosaic: create pipelines with shared device: %w", err)
	}
	a.attachBuffers()
	a.gpuReady = true
	a.logger().Info("gpu-mosaic: switched to shared GPU device")
	return nil
}

// Pixelate uploads frame, runs every job on the GPU and copies the region
// rows back into frame. Frames the kernel cannot address return
// mosaic.ErrFallbackToCPU.
func (a *MosaicAccelerator) Pixelate(frame mosaic.Frame, jobs []mosaic.RegionJob) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.gpuReady || !wordAddressable(frame.Format, frame.Pitch) {
		return mosaic.ErrFallbackToCPU
	}
	if len(jobs) == 0 {
		return nil
	}
	first := jobs[0].Index

	// The last row of a frame may be unpadded; the device copy always holds
	// Pitch*Height bytes.
	size := uint64(frame.Pitch) * uint64(frame.Height) //nolint:gosec // validated positive
	bufs, err := a.buffers.acquire(size)
	if errors.Is(err, ErrMemoryBudgetExceeded) {
		a.logger().Debug("gpu-mosaic: frame exceeds memory budget", "bytes", size)
		return mosaic.ErrFallbackToCPU
	}
	if err != nil {
		return &mosaic.RegionError{Index: first, Err: err}
	}
	storageBuf, stagingBuf := bufs.storage, bufs.staging

	upload := make([]byte, size)
	copy(upload, frame.Data)
	a.queue.WriteBuffer(storageBuf, 0, upload)

	if err := a.dispatchLocked(storageBuf, size, frame.Pitch, jobs, stagingBuf); err != nil {
		return err
	}

	readback := make([]byte, size)
	if err := a.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return &mosaic.RegionError{Index: first, Err: fmt.Errorf("readback: %w", err)}
	}
	copyRegions(frame, readback, jobs)
	return nil
}

// DispatchBuffer runs jobs in place on a frame that already lives in buf,
// with rows pitch bytes apart and size bytes in total. Nothing is copied to
// or from the host. The caller must ensure buf was created with storage
// usage and that the frame uses 4-byte pixels.
func (a *MosaicAccelerator) DispatchBuffer(buf hal.Buffer, size uint64, pitch int, jobs []mosaic.RegionJob) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.gpuReady {
		return ErrNotReady
	}
	if len(jobs) == 0 {
		return nil
	}
	return a.dispatchLocked(buf, size, pitch, jobs, nil)
}

// dispatchLocked records one compute pass per job, optionally followed by a
// copy of the pixel buffer into staging, and waits for completion.
func (a *MosaicAccelerator) dispatchLocked(
	pixelBuf hal.Buffer, size uint64, pitch int,
	jobs []mosaic.RegionJob, stagingBuf hal.Buffer,
) error {
	first := jobs[0].Index

	uniformBufs, bindGroups, err := a.createRegionBindings(jobs, pitch, pixelBuf, size)
	defer a.cleanupBindings(uniformBufs, bindGroups)
	if err != nil {
		return err
	}

	fail := func(err error) error {
		a.logger().Warn("gpu-mosaic: dispatch failed", "regions", len(jobs), "err", err)
		return &mosaic.RegionError{Index: first, Err: err}
	}

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "mosaic_encoder"})
	if err != nil {
		return fail(fmt.Errorf("create command encoder: %w", err))
	}
	if err := encoder.BeginEncoding("mosaic_pixelate"); err != nil {
		return fail(fmt.Errorf("begin encoding: %w", err))
	}

	// One compute pass per region; storage barriers between passes keep
	// overlapping regions in order.
	for i, bg := range bindGroups {
		wx, wy := workgroups(jobs[i])
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "mosaic_pass"})
		pass.SetPipeline(a.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(wx, wy, 1)
		pass.End()
	}

	if stagingBuf != nil {
		encoder.CopyBufferToBuffer(pixelBuf, stagingBuf, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: size},
		})
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fail(fmt.Errorf("end encoding: %w", err))
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fail(fmt.Errorf("create fence: %w", err))
	}
	defer a.device.DestroyFence(fence)
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fail(fmt.Errorf("submit: %w", err))
	}
	fenceOK, err := a.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fail(fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err))
	}

	a.logger().Debug("gpu-mosaic: dispatched", "regions", len(jobs))
	return nil
}

// createRegionBindings creates one uniform buffer and bind group per job.
// A failure is reported against the job whose bindings could not be built.
func (a *MosaicAccelerator) createRegionBindings(
	jobs []mosaic.RegionJob, pitch int,
	pixelBuf hal.Buffer, size uint64,
) ([]hal.Buffer, []hal.BindGroup, error) {
	uniformBufs := make([]hal.Buffer, 0, len(jobs))
	bindGroups := make([]hal.BindGroup, 0, len(jobs))

	for _, job := range jobs {
		ub, err := a.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "mosaic_params", Size: paramsSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return uniformBufs, bindGroups, &mosaic.RegionError{
				Index: job.Index, Err: fmt.Errorf("create uniform buffer: %w", err),
			}
		}
		uniformBufs = append(uniformBufs, ub)
		a.queue.WriteBuffer(ub, 0, newPixelateParams(job, pitch).bytes())

		bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: "mosaic_bind", Layout: a.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: paramsSize}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: pixelBuf.NativeHandle(), Offset: 0, Size: size}},
			},
		})
		if err != nil {
			return uniformBufs, bindGroups, &mosaic.RegionError{
				Index: job.Index, Err: fmt.Errorf("create bind group: %w", err),
			}
		}
		bindGroups = append(bindGroups, bg)
	}

	return uniformBufs, bindGroups, nil
}

// cleanupBindings destroys uniform buffers and bind groups.
func (a *MosaicAccelerator) cleanupBindings(uniformBufs []hal.Buffer, bindGroups []hal.BindGroup) {
	for _, bg := range bindGroups {
		if bg != nil {
			a.device.DestroyBindGroup(bg)
		}
	}
	for _, ub := range uniformBufs {
		if ub != nil {
			a.device.DestroyBuffer(ub)
		}
	}
}

// MemoryStats returns statistics of the frame buffer cache.
func (a *MosaicAccelerator) MemoryStats() MemoryStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buffers == nil {
		return MemoryStats{}
	}
	return a.buffers.stats()
}

// attachBuffers creates the frame buffer cache of the current device.
func (a *MosaicAccelerator) attachBuffers() {
	device := a.device
	alloc := func(size uint64) (*frameBuffers, error) {
		storage, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "mosaic_pixels", Size: size,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("create storage buffer: %w", err)
		}
		staging, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "mosaic_staging", Size: size,
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			device.DestroyBuffer(storage)
			return nil, fmt.Errorf("create staging buffer: %w", err)
		}
		return &frameBuffers{storage: storage, staging: staging, size: size}, nil
	}
	free := func(b *frameBuffers) {
		device.DestroyBuffer(b.staging)
		device.DestroyBuffer(b.storage)
	}
	a.buffers = newBufferCache(a.MemoryBudgetMB, alloc, free)
}

// releaseBuffers frees cached frame buffers before the device goes away.
func (a *MosaicAccelerator) releaseBuffers() {
	if a.buffers != nil {
		a.buffers.close()
		a.buffers = nil
	}
}

// copyRegions copies the region rows of every job from src into frame.
// Bytes outside the regions, row padding included, are left alone.
func copyRegions(frame mosaic.Frame, src []byte, jobs []mosaic.RegionJob) {
	for _, job := range jobs {
		r := job.Region
		for y := r.Y0; y < r.Y1; y++ {
			lo := y*frame.Pitch + r.X0*4
			hi := y*frame.Pitch + r.X1*4
			copy(frame.Data[lo:hi], src[lo:hi])
		}
	}
}

func (a *MosaicAccelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	if err := a.createPipelines(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	a.attachBuffers()
	a.gpuReady = true
	a.logger().Info("gpu-mosaic: GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

func (a *MosaicAccelerator) createPipelines() error {
	shader, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "mosaic_pixelate",
		Source: hal.ShaderSource{WGSL: pixelateShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile pixelate shader: %w", err)
	}
	a.shader = shader

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "mosaic_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	a.bindLayout = bindLayout

	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "mosaic_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{a.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	a.pipeLayout = pipeLayout

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "mosaic_pipeline", Layout: a.pipeLayout,
		Compute: hal.ComputeState{Module: a.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	a.pipeline = pipeline

	return nil
}

func (a *MosaicAccelerator) destroyPipelines() {
	if a.device == nil {
		return
	}
	if a.pipeline != nil {
		a.device.DestroyComputePipeline(a.pipeline)
		a.pipeline = nil
	}
	if a.pipeLayout != nil {
		a.device.DestroyPipelineLayout(a.pipeLayout)
		a.pipeLayout = nil
	}
	if a.bindLayout != nil {
		a.device.DestroyBindGroupLayout(a.bindLayout)
		a.bindLayout = nil
	}
	if a.shader != nil {
		a.device.DestroyShaderModule(a.shader)
		a.shader = nil
	}
}
