package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log level %s, got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.OCR.Engine != "tesseract" {
		t.Errorf("Expected engine tesseract, got %s", cfg.OCR.Engine)
	}
	if cfg.OCR.MinConfidence != 0 {
		t.Errorf("Expected no confidence floor, got %f", cfg.OCR.MinConfidence)
	}
	if cfg.Alignment.MinSimilarity != 0.9 {
		t.Errorf("Expected min similarity 0.9, got %f", cfg.Alignment.MinSimilarity)
	}
	if cfg.Alignment.MaxXDelta != 10 {
		t.Errorf("Expected max x delta 10, got %f", cfg.Alignment.MaxXDelta)
	}
	if cfg.Dedup.MinRatio != 0.5 {
		t.Errorf("Expected dedup ratio 0.5, got %f", cfg.Dedup.MinRatio)
	}
	if cfg.Layout.Locale != "nl" {
		t.Errorf("Expected locale nl, got %s", cfg.Layout.Locale)
	}
	if cfg.Storage.Backend != storage.BackendFile {
		t.Errorf("Expected file storage, got %s", cfg.Storage.Backend)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"json engine", func(c *Config) { c.OCR.Engine = "json" }, ""},
		{"engine case", func(c *Config) { c.OCR.Engine = "Vision" }, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad engine", func(c *Config) { c.OCR.Engine = "paddle" }, "invalid OCR engine"},
		{"bad level", func(c *Config) { c.OCR.Level = "block" }, "invalid OCR level"},
		{"empty level", func(c *Config) { c.OCR.Level = "" }, ""},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "s3" }, "invalid storage backend"},
		{"similarity above one", func(c *Config) { c.Alignment.MinSimilarity = 1.5 }, "alignment.min_similarity"},
		{"negative ratio", func(c *Config) { c.Dedup.MinRatio = -0.1 }, "dedup.min_ratio"},
		{"confidence above one", func(c *Config) { c.OCR.MinConfidence = 2 }, "ocr.min_confidence"},
		{"zero x delta", func(c *Config) { c.Alignment.MaxXDelta = 0 }, "alignment.max_x_delta"},
		{"zero row tolerance", func(c *Config) { c.Layout.RowTolerance = 0 }, "layout.row_tolerance"},
		{"inverted viewport", func(c *Config) { c.OCR.Viewport.X2 = c.OCR.Viewport.X1 }, "invalid viewport"},
		{"inverted viewport disabled", func(c *Config) {
			c.OCR.Viewport.X2 = c.OCR.Viewport.X1
			c.OCR.Viewport.Enabled = false
		}, ""},
		{"bad ttl", func(c *Config) {
			c.OCR.Cache.Enabled = true
			c.OCR.Cache.TTL = "soon"
		}, "ocr.cache.ttl"},
		{"bad ttl cache off", func(c *Config) { c.OCR.Cache.TTL = "soon" }, ""},
		{"zero ocr workers", func(c *Config) { c.OCR.Workers = 0 }, "invalid OCR workers"},
		{"zero batch workers", func(c *Config) { c.Batch.Workers = 0 }, "invalid batch workers"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "invalid max upload size"},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"zero concurrency", func(c *Config) { c.Queue.Concurrency = 0 }, "invalid queue concurrency"},
		{"bad color", func(c *Config) { c.Output.BoxColor = "mauve" }, "output.box_color"},
		{"hex color", func(c *Config) { c.Output.RegionColor = "#00ff00" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCacheTTL(t *testing.T) {
	cfg := DefaultConfig()
	ttl, err := cfg.CacheTTL()
	if err != nil || ttl != 168*time.Hour {
		t.Errorf("CacheTTL() = %v, %v", ttl, err)
	}

	cfg.OCR.Cache.TTL = ""
	if ttl, err := cfg.CacheTTL(); err != nil || ttl != 0 {
		t.Errorf("empty TTL should mean no expiry, got %v, %v", ttl, err)
	}

	cfg.OCR.Cache.TTL = "-1h"
	if _, err := cfg.CacheTTL(); err == nil {
		t.Error("negative TTL should be rejected")
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alignment.MinSimilarity = 0.8
	cfg.Alignment.MaxXDelta = 15
	cfg.Dedup.MinRatio = 0.6
	cfg.Layout.Locale = "en"
	cfg.Layout.XTolerance = 40
	cfg.OCR.Workers = 3
	cfg.OCR.MinConfidence = 0.25
	cfg.OCR.Viewport.Enabled = false

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("ToPipelineConfig() error: %v", err)
	}
	if pc.Align.MinSimilarity != 0.8 || pc.Align.MaxXDelta != 15 {
		t.Errorf("alignment not converted: %+v", pc.Align)
	}
	if pc.DedupRatio != 0.6 {
		t.Errorf("Expected dedup ratio 0.6, got %f", pc.DedupRatio)
	}
	if pc.Markers.Locale != "en" || pc.Markers.MostRelevant != "most relevant" {
		t.Errorf("Expected english markers, got %+v", pc.Markers)
	}
	if pc.Layout.XTolerance != 40 {
		t.Errorf("Expected x tolerance 40, got %f", pc.Layout.XTolerance)
	}
	if pc.Parallel.MaxWorkers != 3 {
		t.Errorf("Expected 3 workers, got %d", pc.Parallel.MaxWorkers)
	}
	if pc.Convert.MinConfidence != 0.25 || pc.Convert.Viewport.Enabled {
		t.Errorf("convert options not converted: %+v", pc.Convert)
	}

	cfg.Layout.Locale = "xx"
	if _, err := cfg.ToPipelineConfig(); err == nil {
		t.Error("unknown locale should fail")
	}
}

func TestToPipelineConfig_MarkersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.yaml")
	content := `locales:
  - locale: de
    comments_boundary: '^\d+ Kommentare$'
    follow: Folgen
    reply: antworten
    most_relevant: relevanteste
    reply_count: antworten
    chrome: [gefällt mir, antworten]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Layout.Locale = "de"
	cfg.Layout.MarkersFile = path
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("ToPipelineConfig() error: %v", err)
	}
	if pc.Markers.MostRelevant != "relevanteste" {
		t.Errorf("Expected markers from file, got %+v", pc.Markers)
	}

	// Built-in locales stay reachable when the file does not define them
	cfg.Layout.Locale = "nl"
	pc, err = cfg.ToPipelineConfig()
	if err != nil || pc.Markers.Locale != "nl" {
		t.Errorf("Expected built-in nl markers, got %+v, %v", pc.Markers, err)
	}
}

func TestToOCRConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OCR.Engine = "json"
	cfg.OCR.DetectionsDir = "/data/dets"
	cfg.OCR.Level = "word"

	oc := cfg.ToOCRConfig()
	if oc.Engine != "json" || oc.DetectionsDir != "/data/dets" || oc.Level != ocr.LevelWord {
		t.Errorf("unexpected OCR config: %+v", oc)
	}
	if len(oc.Languages) != 2 {
		t.Errorf("Expected 2 languages, got %v", oc.Languages)
	}
}

func TestToOutputOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Annotate = false
	cfg.Output.BoxColor = "#102030"

	opts, err := cfg.ToOutputOptions()
	if err != nil {
		t.Fatalf("ToOutputOptions() error: %v", err)
	}
	if opts.Annotate {
		t.Error("Expected annotate off")
	}
	if opts.Style.BoxColor != (color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}) {
		t.Errorf("unexpected box color: %v", opts.Style.BoxColor)
	}

	cfg.Output.RegionColor = "nope"
	if _, err := cfg.ToOutputOptions(); err == nil {
		t.Error("bad region color should fail")
	}
}

func TestToBatchAndQueueConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Workers = 3
	cfg.Batch.ContinueOnError = true
	cfg.Output.Format = "csv"
	cfg.Output.File = "out.csv"

	bc, err := cfg.ToBatchConfig()
	if err != nil {
		t.Fatalf("ToBatchConfig() error: %v", err)
	}
	if bc.Workers != 3 || !bc.ContinueOnError || bc.Format != "csv" || bc.OutputFile != "out.csv" {
		t.Errorf("unexpected batch config: %+v", bc)
	}
	if bc.OutputDir != "annotated" {
		t.Errorf("Expected output dir annotated, got %s", bc.OutputDir)
	}
	if err := bc.Validate(); err != nil {
		t.Errorf("converted batch config should be valid: %v", err)
	}

	qc := cfg.ToQueueConfig()
	if qc.Queue != "feedocr" || qc.Concurrency != 2 || qc.RedisURL == "" {
		t.Errorf("unexpected queue config: %+v", qc)
	}

	so := cfg.ToStorageOptions()
	if so.Backend != storage.BackendFile || so.Dir != "storage" {
		t.Errorf("unexpected storage options: %+v", so)
	}
}
