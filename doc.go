// Package mosaic pixelates rectangular regions of video frames in place.
//
// # Overview
//
// mosaic is a Pure Go region pixelation engine for real-time video analytics
// pipelines. Given a frame buffer, the boxes an upstream detector produced
// (faces, licence plates) and a seed, it replaces the content of every box
// with coarse blocks of averaged colour before the frame is displayed or
// stored.
//
// # Quick Start
//
//	import "github.com/gogpu/mosaic"
//
//	frame := mosaic.FrameFromRGBA(img)
//	boxes := mosaic.Boxes{{Left: 100, Top: 100, Width: 64, Height: 64}}
//	if err := mosaic.Apply(frame, boxes, seed); err != nil {
//	    var re *mosaic.RegionError
//	    if errors.As(err, &re) {
//	        log.Printf("region %d failed: %v", re.Index, re.Err)
//	    }
//	}
//
// # Block Geometry
//
// Each visible region gets its own BlockPattern derived from (seed, index,
// region size) by a stateless integer hash. Block size scales with the
// shorter region edge, so a distant face and a close plate are pixelated at
// a comparable granularity, and the seed jitters both the size and the grid
// phase so repeated frames cannot be averaged back together. Equal inputs
// always give byte-identical output.
//
// # Pixel Formats
//
// Frames carry their Format. Packed RGBA8, BGRA8, RGB8 and Gray8 are
// averaged per channel. NV12 frames pixelate the luma plane with the region
// pattern and the interleaved chroma plane with the same pattern at half
// resolution. All addressing uses the frame pitch; row padding is never
// written.
//
// # Accelerators
//
// The CPU kernel runs block rows on a work-stealing goroutine pool. A GPU
// compute kernel is available through blank import:
//
//	import _ "github.com/gogpu/mosaic/gpu"
//
// Frames the GPU cannot handle fall back to the CPU transparently.
//
// # Errors
//
// Invalid frames (ErrInvalidFrame) and malformed box arrays
// (ErrInvalidBoxArray) are rejected before any pixel changes. Boxes outside
// the frame are skipped silently. Execution failures stop processing and
// return a *RegionError naming the failing box; earlier regions stay
// pixelated.
package mosaic
