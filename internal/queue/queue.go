// Package queue distributes sequence parsing over Redis with asynq: a
// client enqueues screenshot directories and workers parse and store them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeParseSequence is the task type of a sequence parse job.
const TypeParseSequence = "feedocr:parse-sequence"

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "feedocr"

// ParseSequencePayload is the body of a TypeParseSequence task.
type ParseSequencePayload struct {
	SequenceDir string `json:"sequence_dir"`
	RunID       string `json:"run_id"`
}

// NewParseSequenceTask builds a task for dir. An empty runID gets a new one.
func NewParseSequenceTask(dir, runID string) (*asynq.Task, error) {
	if dir == "" {
		return nil, errors.New("sequence dir is required")
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	payload, err := json.Marshal(ParseSequencePayload{SequenceDir: dir, RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return asynq.NewTask(TypeParseSequence, payload), nil
}

// Config holds the Redis connection and queue settings.
type Config struct {
	RedisURL    string
	Queue       string
	Concurrency int
	// Timeout bounds one task; zero keeps the asynq default.
	Timeout  time.Duration
	MaxRetry int
}

func (c Config) redisOpt() (asynq.RedisConnOpt, error) {
	if c.RedisURL == "" {
		return nil, errors.New("redis URL is required")
	}
	opt, err := asynq.ParseRedisURI(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return opt, nil
}

func (c Config) queue() string {
	if c.Queue == "" {
		return DefaultQueue
	}
	return c.Queue
}

// Client enqueues parse jobs.
type Client struct {
	client *asynq.Client
	cfg    Config
}

// NewClient connects to the Redis server in cfg.
func NewClient(cfg Config) (*Client, error) {
	opt, err := cfg.redisOpt()
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt), cfg: cfg}, nil
}

// EnqueueSequence submits dir under runID and returns the task id.
func (c *Client) EnqueueSequence(ctx context.Context, dir, runID string) (string, error) {
	task, err := NewParseSequenceTask(dir, runID)
	if err != nil {
		return "", err
	}
	opts := []asynq.Option{asynq.Queue(c.cfg.queue())}
	if c.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(c.cfg.Timeout))
	}
	if c.cfg.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.cfg.MaxRetry))
	}
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", dir, err)
	}
	return info.ID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error { return c.client.Close() }

// Handler parses the sequence of a task and saves the record.
type Handler struct {
	pl     *pipeline.Pipeline
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler returns a handler; a nil store only parses.
func NewHandler(pl *pipeline.Pipeline, store storage.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pl: pl, store: store, logger: logger, now: time.Now}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p ParseSequencePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.SequenceDir == "" {
		return fmt.Errorf("empty sequence dir: %w", asynq.SkipRetry)
	}
	logger := h.logger.With("run_id", p.RunID, "sequence_dir", p.SequenceDir)

	seq, err := pipeline.DiscoverSequence(p.SequenceDir)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoImages) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	res, err := h.pl.ProcessSequence(ctx, seq)
	if err != nil {
		return err
	}

	rec := storage.Record{
		ID:            seq.Name,
		RunID:         p.RunID,
		ScreenshotDir: filepath.Clean(seq.Dir),
		ReprocessDate: h.now().UTC(),
		Document:      res.Document,
	}
	if e := h.pl.Engine(); e != nil {
		rec.Engine = e.Name()
	}
	if h.store != nil {
		if err := h.store.Save(ctx, rec); err != nil {
			return err
		}
	}
	logger.Info("Parsed sequence", "sequence", seq.Name, "comments", len(res.Document.Comments))
	return nil
}

// Worker runs an asynq server with the parse handler registered.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker configures the server for cfg.
func NewWorker(cfg Config, h *Handler, logger *slog.Logger) (*Worker, error) {
	opt, err := cfg.redisOpt()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.queue(): 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return min(time.Duration(5*(1<<uint(min(n, 4))))*time.Second, time.Minute)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("Task failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeParseSequence, h)
	return &Worker{server: server, mux: mux, logger: logger}, nil
}

// Run processes tasks until ctx is cancelled, then shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.logger.Info("Queue worker started")
	<-ctx.Done()
	w.logger.Info("Queue worker stopping")
	w.server.Shutdown()
	return nil
}
