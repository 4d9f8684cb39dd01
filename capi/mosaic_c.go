package main

/*
#include <stdint.h>

// Result codes of applyMosaicC and applyMosaicFormatC.
enum {
    MOSAIC_OK = 0,
    MOSAIC_INVALID_FRAME = 1,
    MOSAIC_INVALID_BOX_ARRAY = 2,
    MOSAIC_EXECUTION_FAILURE = 3,
};

// Pixel formats accepted by applyMosaicFormatC.
enum {
    MOSAIC_FORMAT_RGBA8 = 0,
    MOSAIC_FORMAT_BGRA8 = 1,
    MOSAIC_FORMAT_RGB8 = 2,
    MOSAIC_FORMAT_GRAY8 = 3,
    MOSAIC_FORMAT_NV12 = 4,
};
*/
import "C"

import (
	"unsafe"

	"github.com/gogpu/mosaic"
)

// applyMosaicC pixelates numBboxes boxes of an RGBA8 frame in place.
//
// bboxes points to numBboxes [left, top, width, height] float quadruples.
//
//export applyMosaicC
func applyMosaicC(frame *C.uchar, width, height, pitch C.int, bboxes *C.float, numBboxes C.int, seed C.uint) C.int {
	code, _ := applyMosaic(
		unsafe.Pointer(frame), int(width), int(height), int(pitch), mosaic.FormatRGBA8,
		unsafe.Pointer(bboxes), int(numBboxes), uint32(seed),
	)
	return C.int(code)
}

// applyMosaicFormatC is applyMosaicC for any MOSAIC_FORMAT_* layout.
// When failedRegion is not NULL it receives the index of the failing box,
// or -1.
//
//export applyMosaicFormatC
func applyMosaicFormatC(frame *C.uchar, width, height, pitch, format C.int, bboxes *C.float, numBboxes C.int, seed C.uint, failedRegion *C.int) C.int {
	f := formatFromC(int(format))
	code, failed := applyMosaic(
		unsafe.Pointer(frame), int(width), int(height), int(pitch), f,
		unsafe.Pointer(bboxes), int(numBboxes), uint32(seed),
	)
	if failedRegion != nil {
		*failedRegion = C.int(failed)
	}
	return C.int(code)
}

// mosaicSetLogLevel enables stderr logging at the given slog level.
//
//export mosaicSetLogLevel
func mosaicSetLogLevel(level C.int) {
	setLogLevel(int(level))
}
