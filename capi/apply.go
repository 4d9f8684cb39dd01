package main

import (
	"errors"
	"log/slog"
	"os"
	"unsafe"

	"github.com/gogpu/mosaic"
)

func main() {} // Required for c-shared build mode

// Result codes, mirrored by the MOSAIC_* enum in mosaic_c.go.
const (
	resultOK               = 0
	resultInvalidFrame     = 1
	resultInvalidBoxArray  = 2
	resultExecutionFailure = 3
)

// noRegion is reported as the failing region when no region failed.
const noRegion = -1

// formatFromC maps a MOSAIC_FORMAT_* value to a Format. Out-of-range values
// map to an invalid Format so that validation reports the frame.
func formatFromC(v int) mosaic.Format {
	if v < 0 || v > 255 {
		return mosaic.Format(255)
	}
	return mosaic.Format(v)
}

// applyMosaic validates the raw pointers, builds a borrowed Frame over the C
// buffer and runs the default engine. It returns a result code and the index
// of the failing region.
func applyMosaic(data unsafe.Pointer, width, height, pitch int, format mosaic.Format, boxes unsafe.Pointer, numBoxes int, seed uint32) (int, int) {
	size, ok := bufferLen(width, height, pitch, format)
	if data == nil || !ok {
		mosaic.Logger().Warn("capi: invalid frame",
			"null", data == nil, "width", width, "height", height, "pitch", pitch, "format", format)
		return resultInvalidFrame, noRegion
	}
	if numBoxes < 0 || (numBoxes > 0 && boxes == nil) {
		mosaic.Logger().Warn("capi: invalid box array", "count", numBoxes, "null", boxes == nil)
		return resultInvalidBoxArray, noRegion
	}

	frame := mosaic.Frame{
		Data:   unsafe.Slice((*byte)(data), size),
		Width:  width,
		Height: height,
		Pitch:  pitch,
		Format: format,
	}
	var flat []float32
	if numBoxes > 0 {
		flat = unsafe.Slice((*float32)(boxes), 4*numBoxes)
	}
	parsed, err := mosaic.ParseBoxesN(flat, numBoxes)
	if err == nil {
		err = mosaic.Apply(frame, parsed, seed)
	}
	return resultCode(err)
}

// bufferLen returns the number of bytes the engine may address in a frame of
// the given geometry. It reports false for geometry that Validate would
// reject before any memory is touched.
func bufferLen(width, height, pitch int, format mosaic.Format) (int, bool) {
	return format.AddressableBytes(width, height, pitch)
}

// resultCode maps an Apply error to a result code and failing region.
func resultCode(err error) (int, int) {
	var re *mosaic.RegionError
	switch {
	case err == nil:
		return resultOK, noRegion
	case errors.Is(err, mosaic.ErrInvalidFrame):
		return resultInvalidFrame, noRegion
	case errors.Is(err, mosaic.ErrInvalidBoxArray):
		return resultInvalidBoxArray, noRegion
	case errors.As(err, &re):
		return resultExecutionFailure, re.Index
	default:
		return resultExecutionFailure, noRegion
	}
}

// setLogLevel routes engine logs to stderr at level, or silences them when
// level is above slog.LevelError.
func setLogLevel(level int) {
	if slog.Level(level) > slog.LevelError {
		mosaic.SetLogger(nil)
		return
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(level)})
	mosaic.SetLogger(slog.New(h))
}
