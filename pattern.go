package mosaic

import "fmt"

// MaxBlockSize is the largest block edge the engine accepts. It keeps the
// per-channel sums of a block within 32 bits on every backend.
const MaxBlockSize = 1024

// BlockConfig controls how block sizes scale with region size.
type BlockConfig struct {
	// Cells is the number of blocks across the shorter region edge before jitter.
	Cells int

	// Jitter is the number of distinct seed-driven size increments added to
	// the base block size.
	Jitter int

	// MinBlock and MaxBlock bound the block edge in pixels.
	MinBlock int
	MaxBlock int
}

// DefaultBlockConfig pixelates a region into roughly eight blocks across its
// shorter edge, so faces and plates end up with comparable granularity.
var DefaultBlockConfig = BlockConfig{
	Cells:    8,
	Jitter:   8,
	MinBlock: 4,
	MaxBlock: 64,
}

// Validate checks the configuration bounds.
func (c BlockConfig) Validate() error {
	switch {
	case c.Cells < 1:
		return fmt.Errorf("mosaic: block config: cells %d < 1", c.Cells)
	case c.Jitter < 1:
		return fmt.Errorf("mosaic: block config: jitter %d < 1", c.Jitter)
	case c.MinBlock < 1:
		return fmt.Errorf("mosaic: block config: min block %d < 1", c.MinBlock)
	case c.MaxBlock < c.MinBlock:
		return fmt.Errorf("mosaic: block config: max block %d < min block %d", c.MaxBlock, c.MinBlock)
	case c.MaxBlock > MaxBlockSize:
		return fmt.Errorf("mosaic: block config: max block %d > %d", c.MaxBlock, MaxBlockSize)
	}
	return nil
}

// BlockPattern is the block geometry of one region: square blocks of Size
// pixels whose grid origin sits (OffsetX, OffsetY) pixels before the region's
// top-left corner.
type BlockPattern struct {
	Size    int
	OffsetX int
	OffsetY int
}

// DerivePattern returns the block pattern for region index of a call with the
// given seed. It is a pure function of its arguments: equal inputs always
// give equal patterns, and it is safe to call from any goroutine.
func DerivePattern(seed uint32, index, regionWidth, regionHeight int, cfg BlockConfig) BlockPattern {
	h := mix64(uint64(seed)<<32 | uint64(uint32(index))) //nolint:gosec // index folded to 32 bits
	h = mix64(h ^ uint64(uint32(regionWidth))<<32 ^ uint64(uint32(regionHeight)))

	short := min(regionWidth, regionHeight)
	base := max(cfg.MinBlock, short/cfg.Cells)
	size := base + int(h%uint64(cfg.Jitter)) //nolint:gosec // bounded by Jitter
	size = min(max(size, cfg.MinBlock), cfg.MaxBlock)

	phase := mix64(h)
	return BlockPattern{
		Size:    size,
		OffsetX: int(phase % uint64(size)),         //nolint:gosec // bounded by size
		OffsetY: int((phase >> 32) % uint64(size)), //nolint:gosec // bounded by size
	}
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
