package mosaic

import (
	"fmt"
	"math"
)

// Format is the pixel layout of a frame buffer.
//
// Packed formats store every channel of a pixel contiguously; each channel is
// averaged independently, so channel order does not matter to the kernel.
// FormatNV12 is planar: a full resolution luma plane followed by an
// interleaved CbCr plane subsampled by two in both directions, both sharing
// the frame pitch.
//
// A chroma sample is shared by a 2x2 luma quad. On NV12 frames the chroma
// region is the clipped region rounded outwards to whole quads, so a box with
// an odd edge also alters the chroma of the one luma column or row beyond
// that edge. Luma outside the clipped region is never written.
type Format uint8

const (
	// FormatRGBA8 is 32-bit RGBA (4 bytes per pixel). This is the default
	// surface format of the video pipelines the engine runs in.
	FormatRGBA8 Format = iota

	// FormatBGRA8 is 32-bit BGRA (4 bytes per pixel).
	FormatBGRA8

	// FormatRGB8 is 24-bit RGB (3 bytes per pixel, no alpha).
	FormatRGB8

	// FormatGray8 is 8-bit grayscale (1 byte per pixel).
	FormatGray8

	// FormatNV12 is planar YUV 4:2:0 with interleaved chroma.
	FormatNV12

	// formatCount is the number of formats (for internal use).
	formatCount
)

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// Name is a short lowercase identifier.
	Name string

	// BytesPerPixel is the size of one pixel of the first (or only) plane.
	BytesPerPixel int

	// Planar indicates a luma plane followed by a subsampled chroma plane.
	Planar bool
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatRGBA8: {Name: "rgba8", BytesPerPixel: 4},
	FormatBGRA8: {Name: "bgra8", BytesPerPixel: 4},
	FormatRGB8:  {Name: "rgb8", BytesPerPixel: 3},
	FormatGray8: {Name: "gray8", BytesPerPixel: 1},
	FormatNV12:  {Name: "nv12", BytesPerPixel: 1, Planar: true},
}

// Info returns the FormatInfo for this format.
// Unknown formats return a zero FormatInfo.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// IsValid reports whether f is a known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// BytesPerPixel returns the number of bytes per pixel of the first plane.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// RowBytes returns the minimum pitch for a frame of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}

// AddressableBytes returns the offset one past the last logical pixel byte
// of a frame with the given geometry. It reports false when a dimension is
// not positive, pitch is below the row size, or the offset overflows int.
func (f Format) AddressableBytes(width, height, pitch int) (int, bool) {
	if !f.IsValid() || width <= 0 || height <= 0 || pitch <= 0 {
		return 0, false
	}
	bpp := f.BytesPerPixel()
	if width > math.MaxInt/bpp {
		return 0, false
	}
	row := width * bpp
	if pitch < row {
		return 0, false
	}
	last := height - 1
	if f.Info().Planar {
		if last > math.MaxInt-height/2 {
			return 0, false
		}
		last += height / 2
	}
	if last > 0 && pitch > (math.MaxInt-row)/last {
		return 0, false
	}
	return last*pitch + row, true
}

// FrameBytes returns the number of bytes a frame of the given height and
// pitch occupies, including row padding. Like RowBytes it does not check
// for overflow; Frame.Validate rejects geometry that does not fit in int.
func (f Format) FrameBytes(pitch, height int) int {
	if f.Info().Planar {
		return pitch * (height + height/2)
	}
	return pitch * height
}

// String returns the format name.
func (f Format) String() string {
	if !f.IsValid() {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return f.Info().Name
}

// ParseFormat returns the format with the given name.
func ParseFormat(name string) (Format, error) {
	for i, info := range formatInfoTable {
		if info.Name == name {
			return Format(i), nil //nolint:gosec // index bounded by formatCount
		}
	}
	return 0, fmt.Errorf("mosaic: unknown pixel format %q", name)
}
