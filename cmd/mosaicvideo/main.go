// Command mosaicvideo pixelates detections in a video file through ffmpeg.
//
// Usage:
//
//	mosaicvideo -in clip.mp4 -out clip-private.mp4 -boxes detections.json -seed 7
//
// ffmpeg and ffprobe must be on PATH. The output carries video only.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogpu/mosaic"
	_ "github.com/gogpu/mosaic/gpu" // enables GPU acceleration when available
	"github.com/gogpu/mosaic/internal/config"
	"github.com/gogpu/mosaic/internal/detections"
	"github.com/gogpu/mosaic/internal/video"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mosaicvideo: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var boxes mosaic.Boxes
	var (
		configFile = flag.String("config", "", "Path to config.json file")
		input      = flag.String("in", "", "Input video")
		output     = flag.String("out", "", "Output video")
		boxesFile  = flag.String("boxes", "", "Detections JSON file with per-frame boxes")
		minScore   = flag.Float64("min-score", 0, "Drop detections scored below this")
		labels     = flag.String("labels", "", "Comma-separated detection labels to keep")
		perFrame   = flag.Bool("seed-per-frame", false, "Derive a new block pattern on every frame")
		codec      = flag.String("codec", "", "ffmpeg video encoder (default: libx264)")
		workers    = flag.Int("workers", 0, "Number of worker goroutines (default: GOMAXPROCS)")
		cpuOnly    = flag.Bool("cpu", false, "Disable GPU acceleration")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error (default: warn)")
		verbose    = flag.Bool("v", false, "Show ffmpeg output")
	)
	seed := flag.Uint("seed", 0, "Base seed for the block pattern")
	flag.Func("box", "Box to pixelate on every frame as left,top,width,height (repeatable)", func(s string) error {
		b, err := detections.ParseBox(s)
		if err != nil {
			return err
		}
		boxes = append(boxes, b)
		return nil
	})
	flag.Parse()

	if *input == "" || *output == "" {
		flag.Usage()
		return errors.New("-in and -out are required")
	}

	var cfg config.Config
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return err
		}
	}
	seedSet := false
	flag.Visit(func(f *flag.Flag) { seedSet = seedSet || f.Name == "seed" })
	cfg.Resolve(config.Flags{
		Seed:       uint32(*seed), //nolint:gosec // flag values above 2^32 wrap
		SeedSet:    seedSet,
		Workers:    *workers,
		CPUOnly:    *cpuOnly,
		VideoCodec: *codec,
		LogLevel:   *logLevel,
	})
	if *perFrame {
		cfg.SeedPerFrame = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	mosaic.SetLogger(logger)

	set := detections.Static(nil)
	if *boxesFile != "" {
		opts := detections.Options{MinScore: float32(*minScore)}
		if *labels != "" {
			opts.Labels = strings.Split(*labels, ",")
		}
		if set, err = detections.Load(*boxesFile, opts); err != nil {
			return err
		}
	}
	set = set.Merge(boxes)

	engine, err := mosaic.NewEngine(cfg.EngineOptions()...)
	if err != nil {
		return err
	}
	defer engine.Close()

	p := &video.Processor{
		Engine:       engine,
		Detections:   set,
		Seed:         cfg.Seed,
		SeedPerFrame: cfg.SeedPerFrame,
		Codec:        cfg.VideoCodec,
		Logger:       logger,
	}
	if *verbose {
		p.Stderr = os.Stderr
	}
	return p.Run(ctx, *input, *output)
}
