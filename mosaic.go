package mosaic

import (
	"errors"
	"sync"

	"github.com/gogpu/mosaic/internal/parallel"
)

// Engine pixelates rectangular regions of frame buffers.
//
// An Engine owns a CPU worker pool and is safe for concurrent use on
// different frames. Callers must not pass the same frame to two concurrent
// Apply calls.
type Engine struct {
	pool    *parallel.WorkerPool
	blocks  BlockConfig
	accel   Accelerator
	cpuOnly bool
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.blocks.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		pool:    parallel.NewWorkerPool(o.workers),
		blocks:  o.blocks,
		accel:   o.accelerator,
		cpuOnly: o.cpuOnly,
	}, nil
}

// BlockConfig returns the block configuration of the engine.
func (e *Engine) BlockConfig() BlockConfig {
	return e.blocks
}

// Close stops the engine's worker pool. Apply calls whose regions are already
// queued finish normally; Apply calls made after Close that reach the CPU
// kernel fail with ErrExecutionFailure.
func (e *Engine) Close() {
	e.pool.Close()
}

// Apply pixelates every box of boxes inside frame, in place.
//
// Input validation happens before any pixel is touched: an invalid frame
// returns an error wrapping ErrInvalidFrame. Boxes that clip to nothing are
// skipped. Regions are processed in index order, so where boxes overlap the
// box with the higher index wins. Only pixels inside the clipped boxes are
// written, except the chroma plane of NV12 frames, which is widened to whole
// 2x2 quads (see Format).
//
// If processing a region fails, Apply stops and returns a *RegionError that
// matches ErrExecutionFailure. Regions before the failing one stay pixelated.
func (e *Engine) Apply(frame Frame, boxes Boxes, seed uint32) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	return e.apply(frame, boxes, seed)
}

// ApplyFlat is like Apply but takes boxes as a flat
// [left, top, width, height, ...] array. A length that is not a multiple
// of 4 returns an error wrapping ErrInvalidBoxArray.
func (e *Engine) ApplyFlat(frame Frame, flat []float32, seed uint32) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	boxes, err := ParseBoxes(flat)
	if err != nil {
		return err
	}
	return e.apply(frame, boxes, seed)
}

func (e *Engine) apply(frame Frame, boxes Boxes, seed uint32) error {
	if len(boxes) == 0 {
		return nil
	}
	jobs := PlanRegions(frame.Width, frame.Height, boxes, seed, e.blocks)
	if len(jobs) == 0 {
		Logger().Debug("mosaic: no visible regions", "boxes", len(boxes))
		return nil
	}

	if a := e.accelerator(); a != nil && a.CanAccelerate(frame) {
		err := a.Pixelate(frame, jobs)
		if err == nil {
			Logger().Debug("mosaic: applied", "path", a.Name(), "regions", len(jobs))
			return nil
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			return regionFailure(err, jobs[0].Index)
		}
		Logger().Debug("mosaic: accelerator declined, using CPU", "accelerator", a.Name())
	}

	if err := e.pixelateCPU(frame, jobs); err != nil {
		return err
	}
	Logger().Debug("mosaic: applied", "path", "cpu", "regions", len(jobs))
	return nil
}

// accelerator returns the accelerator this engine dispatches to, or nil.
func (e *Engine) accelerator() Accelerator {
	if e.cpuOnly {
		return nil
	}
	if e.accel != nil {
		return e.accel
	}
	return RegisteredAccelerator()
}

// regionFailure normalizes an accelerator error into a *RegionError.
func regionFailure(err error, index int) error {
	var re *RegionError
	if errors.As(err, &re) {
		Logger().Warn("mosaic: region failed", "region", re.Index, "err", re.Err)
		return err
	}
	Logger().Warn("mosaic: region failed", "region", index, "err", err)
	return &RegionError{Index: index, Err: err}
}

// PlanRegions clips every box to a width x height frame and derives the block
// pattern of each visible region. Boxes that clip to nothing produce no job.
// Jobs are returned in box order.
//
// Accelerators and device-resident callers use PlanRegions to reproduce
// exactly the geometry the CPU kernel would use.
func PlanRegions(width, height int, boxes Boxes, seed uint32, cfg BlockConfig) []RegionJob {
	jobs := make([]RegionJob, 0, len(boxes))
	for i, box := range boxes {
		r := Clip(box, width, height)
		if r.Empty() {
			continue
		}
		jobs = append(jobs, RegionJob{
			Index:   i,
			Region:  r,
			Pattern: DerivePattern(seed, i, r.Dx(), r.Dy(), cfg),
		})
	}
	return jobs
}

var (
	defaultEngineOnce sync.Once
	defaultEngine     *Engine
)

// Default returns the shared engine used by the package-level functions.
// It is created on first use with default options.
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		// Default options always validate.
		defaultEngine, _ = NewEngine()
	})
	return defaultEngine
}

// Apply pixelates boxes inside frame using the default engine.
// See Engine.Apply.
func Apply(frame Frame, boxes Boxes, seed uint32) error {
	return Default().Apply(frame, boxes, seed)
}

// ApplyFlat pixelates a flat box array inside frame using the default engine.
// See Engine.ApplyFlat.
func ApplyFlat(frame Frame, flat []float32, seed uint32) error {
	return Default().ApplyFlat(frame, flat, seed)
}
