// Package video pixelates detections in video files.
//
// Frames are decoded by ffmpeg into raw RGBA, pixelated in memory and piped
// into a second ffmpeg process for encoding. Audio is not carried over.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/internal/detections"
)

// ErrTruncatedFrame is returned when the decoded stream ends inside a frame.
var ErrTruncatedFrame = errors.New("video: truncated frame")

// Processor pixelates a stream of frames.
type Processor struct {
	// Engine runs the pixelation. Required.
	Engine *mosaic.Engine

	// Detections supplies the boxes of every frame. Required.
	Detections *detections.Set

	// Seed is the base seed. With SeedPerFrame unset every frame uses Seed,
	// so a static box keeps the same block grid across frames.
	Seed         uint32
	SeedPerFrame bool

	// Codec is the ffmpeg video encoder of Run ("libx264", "ffv1", ...).
	Codec string

	// Stderr receives ffmpeg diagnostics. Nil discards them.
	Stderr io.Writer

	// Logger defaults to mosaic.Logger().
	Logger *slog.Logger
}

// FrameSeed returns the seed of frame index n.
func FrameSeed(base uint32, n int, perFrame bool) uint32 {
	if !perFrame {
		return base
	}
	return base + uint32(n) //nolint:gosec // frame index wraps modulo 2^32
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return mosaic.Logger()
}

// ProcessFrames reads tightly packed RGBA frames of width x height from r,
// pixelates each one and writes it to w. It returns the number of frames
// written. A stream that ends between frames is complete; one that ends
// inside a frame returns ErrTruncatedFrame.
func (p *Processor) ProcessFrames(ctx context.Context, r io.Reader, w io.Writer, width, height int) (int, error) {
	frame := mosaic.NewFrame(width, height, mosaic.FormatRGBA8)
	if err := frame.Validate(); err != nil {
		return 0, fmt.Errorf("video: %w", err)
	}

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := io.ReadFull(r, frame.Data); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return n, fmt.Errorf("%w: frame %d", ErrTruncatedFrame, n)
			}
			return n, fmt.Errorf("video: read frame %d: %w", n, err)
		}

		boxes := p.Detections.Boxes(n)
		if err := p.Engine.Apply(frame, boxes, FrameSeed(p.Seed, n, p.SeedPerFrame)); err != nil {
			return n, fmt.Errorf("video: frame %d: %w", n, err)
		}
		if _, err := w.Write(frame.Data); err != nil {
			return n, fmt.Errorf("video: write frame %d: %w", n, err)
		}
		if len(boxes) > 0 {
			p.logger().Debug("video: frame pixelated", "frame", n, "boxes", len(boxes))
		}
	}
}

// Run pixelates the video at in and writes the result to out.
func (p *Processor) Run(ctx context.Context, in, out string) error {
	info, err := Probe(in)
	if err != nil {
		return err
	}
	p.logger().Info("video: start", "input", in, "size", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"rate", info.FrameRate, "frames", info.Frames)

	stderr := p.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	codec := p.Codec
	if codec == "" {
		codec = "libx264"
	}

	decR, decW := io.Pipe()
	encR, encW := io.Pipe()

	decode := ffmpeg.Input(in).
		Output("pipe:1", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgba"}).
		WithOutput(decW).
		WithErrorOutput(stderr)
	decode.Context = ctx

	encode := ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", info.Width, info.Height),
		"r":       info.FrameRate,
	}).
		Output(out, ffmpeg.KwArgs{"c:v": codec}).
		OverWriteOutput().
		WithInput(encR).
		WithErrorOutput(stderr)
	encode.Context = ctx

	decErr := make(chan error, 1)
	go func() {
		err := decode.Run()
		decW.CloseWithError(err)
		decErr <- err
	}()
	encErr := make(chan error, 1)
	go func() {
		err := encode.Run()
		// Unblock ProcessFrames if the encoder exits early.
		encR.CloseWithError(fmt.Errorf("encoder exited: %w", err))
		encErr <- err
	}()

	n, procErr := p.ProcessFrames(ctx, decR, encW, info.Width, info.Height)
	encW.CloseWithError(procErr)
	// Drain so the decoder is not blocked on a full pipe.
	if procErr != nil {
		_, _ = io.Copy(io.Discard, decR)
	}

	errD, errE := <-decErr, <-encErr
	switch {
	case procErr != nil:
		return procErr
	case errD != nil:
		return fmt.Errorf("video: decode %s: %w", in, errD)
	case errE != nil:
		return fmt.Errorf("video: encode %s: %w", out, errE)
	}
	p.logger().Info("video: done", "output", out, "frames", n)
	return nil
}
