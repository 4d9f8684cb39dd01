// Package main provides a C API for the mosaic engine, so that video
// pipelines written in C or C++ can pixelate detector output in place.
//
// # Build Instructions
//
// To build as a C shared library:
//
//	go build -buildmode=c-shared -o libmosaic.so ./capi/
//
// This generates:
//   - libmosaic.so: The shared library
//   - libmosaic.h: Auto-generated C header file with function declarations
//
// Building with -tags nogpu leaves out the GPU accelerator.
//
// # C API Usage
//
//	#include "libmosaic.h"
//
//	// frame: RGBA8, 1920x1080, 7680 bytes per row
//	float boxes[] = {100, 100, 64, 64,   800, 400, 120, 90};
//	int rc = applyMosaicC(frame, 1920, 1080, 7680, boxes, 2, 42);
//	if (rc != MOSAIC_OK) {
//	    fprintf(stderr, "mosaic failed: %d\n", rc);
//	}
//
// Other pixel layouts go through applyMosaicFormatC, which also reports the
// index of the region that failed:
//
//	int failed = -1;
//	int rc = applyMosaicFormatC(nv12, 1280, 720, 1280, MOSAIC_FORMAT_NV12,
//	                            boxes, 2, seed, &failed);
//
// # Result Codes
//
//   - MOSAIC_OK (0): every visible region was pixelated
//   - MOSAIC_INVALID_FRAME (1): null buffer, bad dimensions or pitch; the frame is untouched
//   - MOSAIC_INVALID_BOX_ARRAY (2): negative count or null boxes; the frame is untouched
//   - MOSAIC_EXECUTION_FAILURE (3): a region failed; earlier regions stay pixelated
//
// # Memory
//
// The frame buffer and the box array are borrowed for the duration of the
// call. Nothing is retained, reallocated or freed on the C side's behalf.
//
// # Logging
//
// The library is silent by default. mosaicSetLogLevel(level) writes slog
// records at or above level (-4 debug, 0 info, 4 warn, 8 error) to stderr;
// any level above 8 silences it again.
//
// # Files
//
//   - mosaic_c.go: exported C functions
//   - apply.go: pointer validation and result code mapping
//   - gpu.go: GPU accelerator registration
//   - doc.go: This documentation file
package main
