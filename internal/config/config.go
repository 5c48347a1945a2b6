package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/align"
	"github.com/MeKo-Tech/feedocr/internal/batch"
	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/MeKo-Tech/feedocr/internal/dedup"
	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/queue"
	"github.com/MeKo-Tech/feedocr/internal/render"
	"github.com/MeKo-Tech/feedocr/internal/storage"
)

const (
	debugLevel = "debug"
	infoLevel  = "info"
)

var (
	validLogLevels = []string{debugLevel, infoLevel, "warn", "error"}
	validEngines   = []string{"tesseract", "vision", ocr.JSONEngineName}
	validLevels    = []string{"", string(ocr.LevelWord), string(ocr.LevelLine), string(ocr.LevelParagraph)}
	validBackends  = []string{storage.BackendFile, storage.BackendPostgres}
	validFormats   = []string{batch.FormatText, batch.FormatJSON, batch.FormatCSV}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	vp := ocr.DefaultViewport()
	al := align.DefaultOptions()
	lo := layout.DefaultOptions()
	return Config{
		LogLevel: infoLevel,
		Verbose:  false,
		OCR: OCRConfig{
			Engine:        "tesseract",
			Languages:     []string{"eng", "nld"},
			Level:         string(ocr.LevelLine),
			Workers:       pipeline.DefaultParallelConfig().MaxWorkers,
			MinConfidence: ocr.DefaultConvertOptions().MinConfidence,
			Viewport:      ViewportConfig{X1: vp.X1, X2: vp.X2, Y1: vp.Y1, Y2: vp.Y2, Enabled: vp.Enabled},
			Cache: CacheConfig{
				Enabled:  false,
				RedisURL: "redis://localhost:6379/0",
				TTL:      "168h",
			},
		},
		Alignment: AlignmentConfig{
			MinSimilarity: al.MinSimilarity,
			MaxXDelta:     al.MaxXDelta,
		},
		Dedup: DedupConfig{MinRatio: dedup.DefaultMinRatio},
		Layout: LayoutConfig{
			Locale:          "nl",
			RowTolerance:    box.DefaultRowTolerance,
			BoundaryMargin:  lo.BoundaryMargin,
			HeightTolerance: lo.HeightTolerance,
			XTolerance:      lo.XTolerance,
		},
		Output: OutputConfig{
			Dir:         "annotated",
			Annotate:    true,
			BoxColor:    "red",
			RegionColor: "blue",
			Format:      batch.FormatText,
		},
		Storage: StorageConfig{
			Backend: storage.BackendFile,
			Dir:     "storage",
		},
		Batch: BatchConfig{
			Workers:         2,
			ContinueOnError: false,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
		Queue: QueueConfig{
			RedisURL:    "redis://localhost:6379/0",
			Name:        queue.DefaultQueue,
			Concurrency: 2,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validEngines, strings.ToLower(c.OCR.Engine)) {
		return fmt.Errorf("invalid OCR engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}
	if !slices.Contains(validLevels, c.OCR.Level) {
		return fmt.Errorf("invalid OCR level: %s (must be word, line or paragraph)", c.OCR.Level)
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if !slices.Contains(validBackends, strings.ToLower(c.Storage.Backend)) {
		return fmt.Errorf("invalid storage backend: %s (must be one of: %s)", c.Storage.Backend, strings.Join(validBackends, ", "))
	}

	// Thresholds must be between 0.0 and 1.0
	for name, v := range map[string]float64{
		"ocr.min_confidence":       c.OCR.MinConfidence,
		"alignment.min_similarity": c.Alignment.MinSimilarity,
		"dedup.min_ratio":          c.Dedup.MinRatio,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}

	// Tolerances must be positive
	for name, v := range map[string]float64{
		"alignment.max_x_delta":   c.Alignment.MaxXDelta,
		"layout.row_tolerance":    c.Layout.RowTolerance,
		"layout.boundary_margin":  c.Layout.BoundaryMargin,
		"layout.height_tolerance": c.Layout.HeightTolerance,
		"layout.x_tolerance":      c.Layout.XTolerance,
	} {
		if v <= 0 {
			return fmt.Errorf("invalid %s: %v (must be positive)", name, v)
		}
	}

	if vp := c.OCR.Viewport; vp.Enabled && (vp.X2 <= vp.X1 || vp.Y2 <= vp.Y1) {
		return fmt.Errorf("invalid viewport: x %v..%v, y %v..%v", vp.X1, vp.X2, vp.Y1, vp.Y2)
	}
	if c.OCR.Cache.Enabled {
		if _, err := c.CacheTTL(); err != nil {
			return err
		}
	}

	if c.OCR.Workers <= 0 {
		return fmt.Errorf("invalid OCR workers: %d (must be positive)", c.OCR.Workers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("invalid queue concurrency: %d (must be positive)", c.Queue.Concurrency)
	}

	for name, v := range map[string]string{
		"output.box_color":    c.Output.BoxColor,
		"output.region_color": c.Output.RegionColor,
	} {
		if v == "" {
			continue
		}
		if _, err := render.ParseColor(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// CacheTTL parses the cache TTL; empty means no expiry.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.OCR.Cache.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.OCR.Cache.TTL)
	if err != nil || ttl < 0 {
		return 0, fmt.Errorf("invalid ocr.cache.ttl: %q", c.OCR.Cache.TTL)
	}
	return ttl, nil
}

// ToOCRConfig converts the engine settings for ocr.New.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Engine:          c.OCR.Engine,
		Languages:       c.OCR.Languages,
		Level:           ocr.Level(c.OCR.Level),
		CredentialsFile: c.OCR.CredentialsFile,
		DetectionsDir:   c.OCR.DetectionsDir,
	}
}

// ToPipelineConfig converts the config to the pipeline configuration. It
// resolves the locale markers, reading the markers file if one is set.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	markers, err := layout.ResolveMarkers(c.Layout.Locale, c.Layout.MarkersFile)
	if err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.DefaultConfig()
	vp := c.OCR.Viewport
	cfg.Convert = ocr.ConvertOptions{
		Viewport:      ocr.Viewport{X1: vp.X1, X2: vp.X2, Y1: vp.Y1, Y2: vp.Y2, Enabled: vp.Enabled},
		MinConfidence: c.OCR.MinConfidence,
	}
	cfg.Align.MinSimilarity = c.Alignment.MinSimilarity
	cfg.Align.MaxXDelta = c.Alignment.MaxXDelta
	cfg.DedupRatio = c.Dedup.MinRatio
	cfg.Markers = markers
	cfg.Layout.RowTolerance = c.Layout.RowTolerance
	cfg.Layout.BoundaryMargin = c.Layout.BoundaryMargin
	cfg.Layout.HeightTolerance = c.Layout.HeightTolerance
	cfg.Layout.XTolerance = c.Layout.XTolerance
	cfg.Parallel.MaxWorkers = c.OCR.Workers
	return cfg, nil
}

// ToOutputOptions converts the output settings for pipeline.WriteOutputs.
func (c *Config) ToOutputOptions() (pipeline.OutputOptions, error) {
	opts := pipeline.DefaultOutputOptions()
	opts.Annotate = c.Output.Annotate
	if c.Output.BoxColor != "" {
		col, err := render.ParseColor(c.Output.BoxColor)
		if err != nil {
			return opts, err
		}
		opts.Style.BoxColor = col
	}
	if c.Output.RegionColor != "" {
		col, err := render.ParseColor(c.Output.RegionColor)
		if err != nil {
			return opts, err
		}
		opts.Style.RegionColor = col
	}
	return opts, nil
}

// ToStorageOptions converts the storage settings for storage.Open.
func (c *Config) ToStorageOptions() storage.Options {
	return storage.Options{
		Backend:     c.Storage.Backend,
		Dir:         c.Storage.Dir,
		DatabaseURL: c.Storage.DatabaseURL,
	}
}

// ToBatchConfig converts the batch, output and stage settings.
func (c *Config) ToBatchConfig() (*batch.Config, error) {
	pcfg, err := c.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	out, err := c.ToOutputOptions()
	if err != nil {
		return nil, err
	}
	bc := batch.DefaultConfig()
	bc.Pipeline = pcfg
	bc.Workers = c.Batch.Workers
	bc.ContinueOnError = c.Batch.ContinueOnError
	bc.OutputDir = c.Output.Dir
	bc.Output = out
	bc.Format = c.Output.Format
	bc.OutputFile = c.Output.File
	return bc, nil
}

// ToQueueConfig converts the queue settings.
func (c *Config) ToQueueConfig() queue.Config {
	return queue.Config{
		RedisURL:    c.Queue.RedisURL,
		Queue:       c.Queue.Name,
		Concurrency: c.Queue.Concurrency,
	}
}

// validateThreshold checks if a threshold value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
