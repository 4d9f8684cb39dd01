package mosaic

import (
	"errors"
	"sync"
)

// RegionJob is one planned unit of pixelation work: a clipped, non-empty
// region and the block pattern derived for it.
type RegionJob struct {
	// Index is the position of the source box in the caller's box list.
	Index int

	Region  Region
	Pattern BlockPattern
}

// Accelerator is an optional device backend for the pixelate kernel.
//
// When registered via RegisterAccelerator, engines try the accelerator first
// for frames it can handle. If it returns ErrFallbackToCPU the engine runs
// the CPU kernel instead. Any other error is an execution failure and is
// returned to the caller without retrying.
//
// Implementations live in backend packages. Users opt in via blank import:
//
//	import _ "github.com/gogpu/mosaic/gpu" // enables GPU pixelation
type Accelerator interface {
	// Name returns the accelerator name (e.g., "mosaic-gpu").
	Name() string

	// Init initializes device resources. Called once during registration.
	Init() error

	// Close releases device resources.
	Close()

	// CanAccelerate reports whether frames of this geometry can run on the
	// device. This is a fast check used to skip the device entirely.
	CanAccelerate(frame Frame) bool

	// Pixelate runs jobs against frame and returns once frame holds the
	// result. Failures should be reported as *RegionError naming the first
	// job that did not complete.
	Pixelate(frame Frame, jobs []RegionJob) error
}

// DeviceProviderAware is an optional interface for accelerators that can share
// a GPU device with an external provider (e.g., the pipeline's own device).
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator registers a device accelerator.
//
// Only one accelerator can be registered. Subsequent calls replace the
// previous one, which is closed. The accelerator's Init method is called
// during registration; if it fails, nothing is registered.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("mosaic: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())

	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil && old != a {
		old.Close()
	}
	return nil
}

// UnregisterAccelerator closes and removes the registered accelerator.
func UnregisterAccelerator() {
	accelMu.Lock()
	old := accel
	accel = nil
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// RegisteredAccelerator returns the registered accelerator, or nil if none.
func RegisteredAccelerator() Accelerator {
	accelMu.RLock()
	defer accelMu.RUnlock()
	return accel
}

// SetAcceleratorDeviceProvider passes a device provider to the registered
// accelerator. If no accelerator is registered or it does not support device
// sharing, this is a no-op.
func SetAcceleratorDeviceProvider(provider any) error {
	a := RegisteredAccelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
