//go:build !nogpu

package gpu

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// Memory management errors.
var (
	// ErrMemoryBudgetExceeded is returned when a frame needs more device
	// memory than the budget allows, even after eviction.
	ErrMemoryBudgetExceeded = errors.New("gpu-mosaic: memory budget exceeded")

	// ErrMemoryManagerClosed is returned when acquiring from a closed cache.
	ErrMemoryManagerClosed = errors.New("gpu-mosaic: buffer cache closed")
)

// Default memory limits.
const (
	// DefaultMaxMemoryMB is the default frame buffer budget (256 MB).
	DefaultMaxMemoryMB = 256

	// MinMemoryMB is the minimum allowed budget (16 MB).
	MinMemoryMB = 16
)

// MemoryStats contains frame buffer cache statistics.
type MemoryStats struct {
	// TotalBytes is the budget in bytes.
	TotalBytes uint64

	// UsedBytes is the memory held by cached buffers.
	UsedBytes uint64

	// AvailableBytes is the remaining budget.
	AvailableBytes uint64

	// BufferCount is the number of cached frame sizes.
	BufferCount int

	// Hits and Misses count acquisitions served from and added to the cache.
	Hits   uint64
	Misses uint64

	// EvictionCount is the number of frame sizes evicted.
	EvictionCount uint64

	// Utilization is the fraction of budget used (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d sizes, %d hits, %d misses, %d evictions]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.BufferCount,
		s.Hits, s.Misses,
		s.EvictionCount)
}

// frameBuffers is the device memory of one frame size: the storage buffer
// the kernel works in and the mappable staging buffer it is read back from.
type frameBuffers struct {
	storage hal.Buffer
	staging hal.Buffer
	size    uint64
}

// cost is the device memory held by b.
func (b *frameBuffers) cost() uint64 { return 2 * b.size }

type cacheEntry struct {
	bufs    *frameBuffers
	element *list.Element // Position in LRU list
}

// bufferCache keeps frame buffers alive between calls so that a video
// stream of constant frame size allocates device memory once. One entry is
// kept per frame size and the least recently used sizes are evicted when
// the budget is exceeded.
//
// bufferCache is safe for concurrent use.
type bufferCache struct {
	mu sync.Mutex

	budgetBytes uint64
	usedBytes   uint64

	entries map[uint64]*cacheEntry

	// LRU list (front = most recently used)
	lruList *list.List

	hits, misses, evictions uint64

	alloc func(size uint64) (*frameBuffers, error)
	free  func(*frameBuffers)

	closed bool
}

// newBufferCache creates a cache with a budget of maxMB megabytes.
// Budgets below MinMemoryMB select DefaultMaxMemoryMB.
func newBufferCache(maxMB int, alloc func(uint64) (*frameBuffers, error), free func(*frameBuffers)) *bufferCache {
	if maxMB < MinMemoryMB {
		maxMB = DefaultMaxMemoryMB
	}
	//nolint:gosec // G115: maxMB is bounded by MinMemoryMB minimum
	return &bufferCache{
		budgetBytes: uint64(maxMB) * 1024 * 1024,
		entries:     make(map[uint64]*cacheEntry),
		lruList:     list.New(),
		alloc:       alloc,
		free:        free,
	}
}

// acquire returns the buffers for frames of size bytes, allocating them on
// a miss. The buffers stay owned by the cache.
func (c *bufferCache) acquire(size uint64) (*frameBuffers, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrMemoryManagerClosed
	}
	if e, ok := c.entries[size]; ok {
		c.lruList.MoveToFront(e.element)
		c.hits++
		return e.bufs, nil
	}

	need := 2 * size
	if need > c.budgetBytes {
		return nil, fmt.Errorf("%w: frame needs %d bytes, budget is %d bytes",
			ErrMemoryBudgetExceeded, need, c.budgetBytes)
	}
	for c.usedBytes+need > c.budgetBytes && c.lruList.Len() > 0 {
		c.evictLocked(c.lruList.Back())
	}

	bufs, err := c.alloc(size)
	if err != nil {
		return nil, err
	}
	c.misses++
	e := &cacheEntry{bufs: bufs}
	e.element = c.lruList.PushFront(e)
	c.entries[size] = e
	c.usedBytes += bufs.cost()
	return bufs, nil
}

// evictLocked frees the entry at elem. Caller must hold mu.
func (c *bufferCache) evictLocked(elem *list.Element) {
	e, ok := c.lruList.Remove(elem).(*cacheEntry)
	if !ok {
		return
	}
	delete(c.entries, e.bufs.size)
	c.usedBytes -= e.bufs.cost()
	c.free(e.bufs)
	c.evictions++
}

// stats returns current cache statistics.
func (c *bufferCache) stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := MemoryStats{
		TotalBytes:    c.budgetBytes,
		UsedBytes:     c.usedBytes,
		BufferCount:   len(c.entries),
		Hits:          c.hits,
		Misses:        c.misses,
		EvictionCount: c.evictions,
	}
	if c.usedBytes < c.budgetBytes {
		s.AvailableBytes = c.budgetBytes - c.usedBytes
	}
	if c.budgetBytes > 0 {
		s.Utilization = float64(c.usedBytes) / float64(c.budgetBytes)
	}
	return s
}

// close frees every cached buffer. Later acquisitions fail with
// ErrMemoryManagerClosed.
func (c *bufferCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.lruList.Front(); e != nil; e = e.Next() {
		if entry, ok := e.Value.(*cacheEntry); ok {
			c.free(entry.bufs)
		}
	}
	c.lruList.Init()
	c.entries = make(map[uint64]*cacheEntry)
	c.usedBytes = 0
	c.closed = true
}
