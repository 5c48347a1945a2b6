package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/feedocr/internal/config"
	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"

	// Engines register themselves with the ocr package.
	_ "github.com/MeKo-Tech/feedocr/internal/ocr/tesseract"
	_ "github.com/MeKo-Tech/feedocr/internal/ocr/vision"
)

// cachedEngine closes the Redis cache together with the engine.
type cachedEngine struct {
	*ocr.CachedEngine
	cache *ocr.RedisCache
}

func (e *cachedEngine) Close() error {
	return errors.Join(e.CachedEngine.Close(), e.cache.Close())
}

// openEngine creates the configured OCR engine, wrapped in the Redis result
// cache when it is enabled.
func openEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ocr.Engine, error) {
	engine, err := ocr.New(ctx, cfg.ToOCRConfig())
	if err != nil {
		return nil, err
	}
	if !cfg.OCR.Cache.Enabled {
		return engine, nil
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	cache, err := ocr.NewRedisCache(ctx, cfg.OCR.Cache.RedisURL)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("connect OCR cache: %w", err)
	}
	logger.Debug("OCR cache enabled", "engine", engine.Name(), "ttl", ttl)
	return &cachedEngine{CachedEngine: ocr.WithCache(engine, cache, ttl, logger), cache: cache}, nil
}

// buildPipeline opens the engine and assembles the sequence pipeline.
// Closing the pipeline closes the engine.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	progress pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	b := pipeline.NewBuilder().
		WithConfig(pcfg).
		WithEngine(engine).
		WithLogger(logger)
	if progress != nil {
		b = b.WithProgress(progress)
	}
	pl, err := b.Build()
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return pl, nil
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := storage.Open(ctx, cfg.ToStorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	return store, nil
}
