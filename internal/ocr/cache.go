package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores detections per cache key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Detection, bool, error)
	Set(ctx context.Context, key string, dets []Detection, ttl time.Duration) error
}

// RedisCache keeps detections as JSON strings in redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the redis instance at url (redis://host:port/db).
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Detection, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var dets []Detection
	if err := json.Unmarshal(raw, &dets); err != nil {
		return nil, false, fmt.Errorf("decode cached detections: %w", err)
	}
	return dets, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, dets []Detection, ttl time.Duration) error {
	raw, err := json.Marshal(dets)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

// Close releases the redis connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

// CacheKey identifies the output of engine on the given image bytes.
func CacheKey(engine string, data []byte) string {
	sum := sha256.Sum256(data)
	return "feedocr:ocr:" + engine + ":" + hex.EncodeToString(sum[:])
}

// CachedEngine answers repeated images from a cache. Cache failures are
// logged and fall through to the wrapped engine.
type CachedEngine struct {
	Engine
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// WithCache wraps e so results are cached for ttl (0 keeps them forever).
func WithCache(e Engine, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEngine{Engine: e, cache: cache, ttl: ttl, logger: logger}
}

func (e *CachedEngine) Recognize(ctx context.Context, img Image) ([]Detection, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}
	key := CacheKey(e.Name(), data)

	dets, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("OCR cache read failed", "key", key, "error", err)
	case ok:
		e.logger.Debug("OCR cache hit", "path", img.Path, "detections", len(dets))
		return dets, nil
	}

	dets, err = e.Engine.Recognize(ctx, Image{Path: img.Path, Data: data})
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, key, dets, e.ttl); err != nil {
		e.logger.Warn("OCR cache write failed", "key", key, "error", err)
	}
	return dets, nil
}
