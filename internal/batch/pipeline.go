package batch

import (
	"log/slog"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
)

// imageWorkers splits the configured OCR workers among the batch workers
// so concurrent sequences do not oversubscribe the engine.
func imageWorkers(config *Config) int {
	total := config.Pipeline.Parallel.MaxWorkers
	if total <= 0 {
		total = pipeline.DefaultParallelConfig().MaxWorkers
	}
	return max(total/max(config.Workers, 1), 1)
}

// buildPipeline creates the sequence pipeline from the batch configuration.
// Per-image progress is left off; the batch reports progress per sequence.
func buildPipeline(config *Config, engine ocr.Engine, logger *slog.Logger) (*pipeline.Pipeline, error) {
	cfg := config.Pipeline
	cfg.Parallel.ProgressCallback = nil
	cfg.Parallel.MaxWorkers = imageWorkers(config)

	return pipeline.NewBuilder().
		WithConfig(cfg).
		WithEngine(engine).
		WithLogger(logger).
		Build()
}
