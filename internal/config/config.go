// Package config loads the settings shared by the mosaic command-line tools.
//
// Settings come from an optional JSON file and are overridden by flags.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/mosaic"
)

// Config holds engine and output settings.
type Config struct {
	// Engine settings
	Seed     uint32 `json:"seed"`
	Workers  int    `json:"workers"`
	CPUOnly  bool   `json:"cpu_only"`
	Cells    int    `json:"cells"`
	Jitter   int    `json:"jitter"`
	MinBlock int    `json:"min_block"`
	MaxBlock int    `json:"max_block"`

	// Output settings
	OutputFormat string `json:"output_format"` // png, jpeg or webp; empty means by extension
	JPEGQuality  int    `json:"jpeg_quality"`

	// Video settings
	VideoCodec   string `json:"video_codec"`
	SeedPerFrame bool   `json:"seed_per_frame"`

	LogLevel string `json:"log_level"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
// Zero values leave the file setting alone; Seed is applied when SeedSet.
type Flags struct {
	Seed         uint32
	SeedSet      bool
	Workers      int
	CPUOnly      bool
	OutputFormat string
	JPEGQuality  int
	VideoCodec   string
	LogLevel     string
}

// Resolve applies flag overrides and fills empty fields with defaults.
func (c *Config) Resolve(flags Flags) {
	if flags.SeedSet {
		c.Seed = flags.Seed
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.CPUOnly {
		c.CPUOnly = true
	}
	if flags.OutputFormat != "" {
		c.OutputFormat = flags.OutputFormat
	}
	if flags.JPEGQuality > 0 {
		c.JPEGQuality = flags.JPEGQuality
	}
	if flags.VideoCodec != "" {
		c.VideoCodec = flags.VideoCodec
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	d := mosaic.DefaultBlockConfig
	if c.Cells <= 0 {
		c.Cells = d.Cells
	}
	if c.Jitter <= 0 {
		c.Jitter = d.Jitter
	}
	if c.MinBlock <= 0 {
		c.MinBlock = d.MinBlock
	}
	if c.MaxBlock <= 0 {
		c.MaxBlock = d.MaxBlock
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 90
	}
	if c.VideoCodec == "" {
		c.VideoCodec = "libx264"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks settings that Resolve cannot default.
func (c Config) Validate() error {
	if err := c.BlockConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.OutputFormat {
	case "", "png", "jpeg", "webp":
	default:
		return fmt.Errorf("config: unknown output format %q", c.OutputFormat)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("config: jpeg quality %d out of range 1-100", c.JPEGQuality)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// BlockConfig returns the engine block configuration.
func (c Config) BlockConfig() mosaic.BlockConfig {
	return mosaic.BlockConfig{
		Cells:    c.Cells,
		Jitter:   c.Jitter,
		MinBlock: c.MinBlock,
		MaxBlock: c.MaxBlock,
	}
}

// EngineOptions returns the engine options described by c.
func (c Config) EngineOptions() []mosaic.EngineOption {
	opts := []mosaic.EngineOption{mosaic.WithBlockConfig(c.BlockConfig())}
	if c.Workers > 0 {
		opts = append(opts, mosaic.WithWorkers(c.Workers))
	}
	if c.CPUOnly {
		opts = append(opts, mosaic.WithCPUOnly())
	}
	return opts
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
