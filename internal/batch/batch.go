// Package batch reprocesses many screenshot sequences with a worker pool
// and saves each parsed document to a storage backend.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/google/uuid"
)

// ProcessBatch discovers the sequences under args, parses each one with
// engine and saves the records to store (nil skips saving). The returned
// result covers every sequence; without ContinueOnError the first failure
// is also returned as the error.
func ProcessBatch(ctx context.Context, args []string, config *Config, engine ocr.Engine,
	store storage.Store, logger *slog.Logger) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	seqs, err := discoverSequences(args, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover sequences: %w", err)
	}
	if len(seqs) == 0 {
		return nil, errNoSequences
	}

	var progressCallback pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progressCallback = pipeline.NewConsoleProgressCallback(os.Stderr, "Sequences: ")
	}

	pl, err := buildPipeline(config, engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	runID := uuid.NewString()
	logger.Info("Starting batch", "run_id", runID, "sequences", len(seqs), "workers", config.Workers)

	p := &processor{pl: pl, store: store, config: config, runID: runID, logger: logger.With("run_id", runID), now: time.Now}
	startTime := time.Now()
	items := p.processSequencesParallel(ctx, seqs, progressCallback)

	result := &Result{
		RunID:       runID,
		Items:       items,
		Duration:    time.Since(startTime),
		WorkerCount: config.Workers,
	}
	logger.Info("Batch finished", "run_id", runID, "processed", result.Processed(), "failed", result.Failed())

	if !config.ContinueOnError {
		if err := result.FirstError(); err != nil {
			return result, err
		}
	}
	return result, nil
}
