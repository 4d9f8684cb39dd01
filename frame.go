package mosaic

import (
	"fmt"
	"image"
	"math"
)

// Frame is a borrowed view of a pixel buffer.
//
// The caller owns Data. The engine reads and writes it only for the duration
// of a single Apply call and never retains, reallocates or frees it. The
// caller must not read or write Data from elsewhere while Apply runs.
//
// Pixel (x, y) of the first plane starts at byte y*Pitch + x*BytesPerPixel.
// Bytes between Width*BytesPerPixel and Pitch on every row are padding and
// are never written.
type Frame struct {
	// Data is the pixel memory, at least
	// Format.AddressableBytes(Width, Height, Pitch) long.
	Data []byte

	// Width is the number of logical pixel columns.
	Width int

	// Height is the number of pixel rows of the first plane.
	Height int

	// Pitch is the distance in bytes between the starts of consecutive rows.
	Pitch int

	// Format is the pixel layout. The zero value is FormatRGBA8.
	Format Format
}

// NewFrame allocates a frame with tightly packed rows.
func NewFrame(width, height int, format Format) Frame {
	return NewFrameWithPitch(width, height, format.RowBytes(width), format)
}

// NewFrameWithPitch allocates a frame with the given row pitch.
// Pitch values below the format's row size produce a frame that fails Validate.
func NewFrameWithPitch(width, height, pitch int, format Format) Frame {
	size := 0
	if width > 0 && height > 0 && pitch > 0 {
		size = format.FrameBytes(pitch, height)
	}
	return Frame{
		Data:   make([]byte, size),
		Width:  width,
		Height: height,
		Pitch:  pitch,
		Format: format,
	}
}

// FrameFromRGBA returns a frame sharing img's pixel memory without copying.
// The image rectangle may start anywhere; the frame covers img.Bounds().
func FrameFromRGBA(img *image.RGBA) Frame {
	b := img.Bounds()
	if b.Empty() {
		return Frame{Format: FormatRGBA8}
	}
	start := img.PixOffset(b.Min.X, b.Min.Y)
	return Frame{
		Data:   img.Pix[start:],
		Width:  b.Dx(),
		Height: b.Dy(),
		Pitch:  img.Stride,
		Format: FormatRGBA8,
	}
}

// Validate checks the frame geometry. Every failure wraps ErrInvalidFrame.
func (f Frame) Validate() error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: nil buffer", ErrInvalidFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if !f.Format.IsValid() {
		return fmt.Errorf("%w: unknown format %d", ErrInvalidFrame, int(f.Format))
	}
	if f.Width > math.MaxInt/f.Format.BytesPerPixel() {
		return fmt.Errorf("%w: width %d overflows", ErrInvalidFrame, f.Width)
	}
	if minPitch := f.Format.RowBytes(f.Width); f.Pitch < minPitch {
		return fmt.Errorf("%w: pitch %d < %d (width %d, %s)", ErrInvalidFrame, f.Pitch, minPitch, f.Width, f.Format)
	}
	if f.Format.Info().Planar && (f.Width%2 != 0 || f.Height%2 != 0) {
		return fmt.Errorf("%w: %s needs even dimensions, got %dx%d", ErrInvalidFrame, f.Format, f.Width, f.Height)
	}
	// Pitch*Height can exceed the backing slice when the last row is not
	// padded; only the bytes the kernel can address are required.
	need, ok := f.Format.AddressableBytes(f.Width, f.Height, f.Pitch)
	if !ok {
		return fmt.Errorf("%w: %d rows of pitch %d overflow", ErrInvalidFrame, f.Height, f.Pitch)
	}
	if len(f.Data) < need {
		return fmt.Errorf("%w: buffer holds %d bytes, need %d", ErrInvalidFrame, len(f.Data), need)
	}
	return nil
}

// plane is one independently pixelated pixel grid of a frame.
type plane struct {
	data   []byte
	width  int
	height int
	pitch  int
	bpp    int

	// shift is the log2 subsampling factor relative to the first plane.
	shift uint
}

// planes splits the frame into the pixel grids the kernel processes.
// The frame must be valid.
func (f Frame) planes() []plane {
	info := f.Format.Info()
	if !info.Planar {
		return []plane{{
			data:   f.Data,
			width:  f.Width,
			height: f.Height,
			pitch:  f.Pitch,
			bpp:    info.BytesPerPixel,
		}}
	}
	chroma := f.Pitch * f.Height
	return []plane{
		{data: f.Data[:chroma], width: f.Width, height: f.Height, pitch: f.Pitch, bpp: 1},
		{data: f.Data[chroma:], width: f.Width / 2, height: f.Height / 2, pitch: f.Pitch, bpp: 2, shift: 1},
	}
}
