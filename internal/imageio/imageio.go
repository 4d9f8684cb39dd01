// Package imageio decodes still images into RGBA frames and encodes them back.
//
// Decoding accepts PNG, JPEG, GIF, BMP, TIFF, WebP and TGA. Encoding writes
// PNG, JPEG or lossless WebP.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ErrUnknownFormat is returned for an output format or extension that
// cannot be encoded.
var ErrUnknownFormat = errors.New("imageio: unknown output format")

// Output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// formatTGA is the name Decode reports for TGA input.
const formatTGA = "tga"

// decoder is a sniffable input format. A '?' in magic matches any byte.
//
// The tga package registers itself with image.RegisterFormat under an empty
// magic string, which matches every input. Formats are therefore matched
// here rather than through image.Decode, with TGA tried last.
type decoder struct {
	name   string
	magic  string
	decode func(io.Reader) (image.Image, error)
}

var decoders = []decoder{
	{"png", "\x89PNG\r\n\x1a\n", png.Decode},
	{"jpeg", "\xff\xd8", jpeg.Decode},
	{"gif", "GIF8?a", gif.Decode},
	{"bmp", "BM????\x00\x00\x00\x00", bmp.Decode},
	{"tiff", "II*\x00", tiff.Decode},
	{"tiff", "MM\x00*", tiff.Decode},
	{"webp", "RIFF????WEBPVP8", webp.Decode},
}

func (d decoder) match(br *bufio.Reader) bool {
	b, err := br.Peek(len(d.magic))
	if err != nil {
		return false
	}
	for i, c := range b {
		if d.magic[i] != c && d.magic[i] != '?' {
			return false
		}
	}
	return true
}

// Decode reads an image and returns it as RGBA with its origin at (0, 0),
// together with the detected format name. Input that matches no known
// signature is decoded as TGA, which has none.
func Decode(r io.Reader) (*image.RGBA, string, error) {
	br := bufio.NewReader(r)
	for _, d := range decoders {
		if d.match(br) {
			img, err := d.decode(br)
			if err != nil {
				return nil, "", fmt.Errorf("imageio: decode %s: %w", d.name, err)
			}
			return ToRGBA(img), d.name, nil
		}
	}

	img, err := tga.Decode(br)
	if err != nil {
		return nil, "", fmt.Errorf("imageio: decode: %w (%v)", image.ErrFormat, err)
	}
	return ToRGBA(img), formatTGA, nil
}

// Load decodes the image file at path. Files with a .tga extension are
// decoded as TGA; everything else is sniffed.
func Load(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err := tga.Decode(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("%s: imageio: decode tga: %w", path, err)
		}
		return ToRGBA(img), nil
	}

	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ToRGBA returns img as an *image.RGBA whose bounds start at (0, 0).
// An RGBA image already at the origin is returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FormatFromPath returns the output format implied by the file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnknownFormat, filepath.Ext(path))
}

// Encode writes img to w in format. quality applies to JPEG only.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatWebP:
		err = nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("imageio: encode %s: %w", format, err)
	}
	return nil
}

// Save encodes img to path. An empty format is derived from the extension.
func Save(path string, img image.Image, format string, quality int) (err error) {
	if format == "" {
		if format, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("imageio: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("imageio: close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Encode(bw, img, format, quality); err != nil {
		return err
	}
	return bw.Flush()
}
