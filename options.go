package mosaic

// EngineOption configures an Engine during creation.
// Use functional options to customize Engine behavior.
//
// Example:
//
//	// Default CPU workers, registered accelerator if any
//	e, err := mosaic.NewEngine()
//
//	// Coarser blocks on four workers, never touching the GPU
//	e, err := mosaic.NewEngine(
//	    mosaic.WithWorkers(4),
//	    mosaic.WithBlockConfig(mosaic.BlockConfig{Cells: 4, Jitter: 4, MinBlock: 8, MaxBlock: 128}),
//	    mosaic.WithCPUOnly(),
//	)
type EngineOption func(*engineOptions)

// engineOptions holds optional configuration for Engine creation.
type engineOptions struct {
	workers     int
	blocks      BlockConfig
	accelerator Accelerator
	cpuOnly     bool
}

// defaultOptions returns the default engine options.
func defaultOptions() engineOptions {
	return engineOptions{
		workers: 0, // GOMAXPROCS
		blocks:  DefaultBlockConfig,
	}
}

// WithWorkers sets the number of CPU worker goroutines.
// Values <= 0 use runtime.GOMAXPROCS(0).
func WithWorkers(n int) EngineOption {
	return func(o *engineOptions) {
		o.workers = n
	}
}

// WithBlockConfig sets how block sizes scale with region size.
// NewEngine rejects configurations that fail BlockConfig.Validate.
func WithBlockConfig(cfg BlockConfig) EngineOption {
	return func(o *engineOptions) {
		o.blocks = cfg
	}
}

// WithAccelerator makes the engine use a instead of the globally registered
// accelerator. The engine does not call Init or Close on a; the caller owns
// its lifetime.
//
// This is mostly useful for dependency injection in tests and for hosts that
// run several engines on different devices.
func WithAccelerator(a Accelerator) EngineOption {
	return func(o *engineOptions) {
		o.accelerator = a
	}
}

// WithCPUOnly disables every accelerator for the engine.
func WithCPUOnly() EngineOption {
	return func(o *engineOptions) {
		o.cpuOnly = true
	}
}
