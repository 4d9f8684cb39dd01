// Command mosaic pixelates rectangular regions of a still image.
//
// Usage:
//
//	mosaic -in photo.jpg -out blurred.png -box 120,80,64,64 -seed 42
//	mosaic -in frame.tga -out frame.webp -boxes detections.json -config mosaic.json
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/mosaic"
	_ "github.com/gogpu/mosaic/gpu" // enables GPU acceleration when available
	"github.com/gogpu/mosaic/internal/config"
	"github.com/gogpu/mosaic/internal/detections"
	"github.com/gogpu/mosaic/internal/imageio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mosaic: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var boxes mosaic.Boxes
	var (
		configFile = flag.String("config", "", "Path to config.json file")
		input      = flag.String("in", "", "Input image (png, jpeg, gif, bmp, tiff, webp, tga)")
		output     = flag.String("out", "", "Output image (png, jpeg or webp)")
		boxesFile  = flag.String("boxes", "", "Detections JSON file")
		minScore   = flag.Float64("min-score", 0, "Drop detections scored below this")
		labels     = flag.String("labels", "", "Comma-separated detection labels to keep")
		workers    = flag.Int("workers", 0, "Number of worker goroutines (default: GOMAXPROCS)")
		cpuOnly    = flag.Bool("cpu", false, "Disable GPU acceleration")
		format     = flag.String("format", "", "Output format (default: from -out extension)")
		quality    = flag.Int("quality", 0, "JPEG quality 1-100 (default: 90)")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error (default: warn)")
		digest     = flag.Bool("digest", false, "Print the BLAKE2b-256 digest of the result")
	)
	seed := flag.Uint("seed", 0, "Seed for the block pattern")
	flag.Func("box", "Box to pixelate as left,top,width,height (repeatable)", func(s string) error {
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
		Seed:         uint32(*seed), //nolint:gosec // flag values above 2^32 wrap
		SeedSet:      seedSet,
		Workers:      *workers,
		CPUOnly:      *cpuOnly,
		OutputFormat: *format,
		JPEGQuality:  *quality,
		LogLevel:     *logLevel,
	})
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

	img, err := imageio.Load(*input)
	if err != nil {
		return err
	}

	engine, err := mosaic.NewEngine(cfg.EngineOptions()...)
	if err != nil {
		return err
	}
	defer engine.Close()

	frame := mosaic.FrameFromRGBA(img)
	regions := set.Boxes(0)
	if err := engine.Apply(frame, regions, cfg.Seed); err != nil {
		return err
	}
	logger.Info("pixelated", "input", *input, "size", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
		"boxes", len(regions), "seed", cfg.Seed)

	if err := imageio.Save(*output, img, cfg.OutputFormat, cfg.JPEGQuality); err != nil {
		return err
	}
	if *digest {
		sum, err := mosaic.FrameDigestHex(frame)
		if err != nil {
			return err
		}
		fmt.Println(sum)
	}
	return nil
}
