package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/feedocr/internal/queue"
	"github.com/spf13/cobra"
)

// workerCmd consumes queued sequence parse jobs.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued screenshot sequences",
	Long: `Start a queue worker that parses the sequences submitted with
"feedocr enqueue" and saves each document to the storage backend.

The worker runs until it receives SIGINT or SIGTERM and then finishes the
jobs in flight.

Examples:
  feedocr worker
  feedocr worker --concurrency 4 --queue feeds`,
	SilenceUsage: true,
	RunE:         runWorkerCommand,
}

func runWorkerCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cmd.Flags().Changed("concurrency") {
		cfg.Queue.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	qcfg := cfg.ToQueueConfig()
	qcfg.RedisURL, qcfg.Queue = queueFlagValues(cmd, qcfg.RedisURL, qcfg.Queue)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	pl, err := buildPipeline(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	w, err := queue.NewWorker(qcfg, queue.NewHandler(pl, store, logger), logger)
	if err != nil {
		return err
	}
	logger.Info("Starting queue worker", "queue", qcfg.Queue, "concurrency", qcfg.Concurrency)
	return w.Run(ctx)
}

// queueFlagValues returns the Redis URL and queue name with the command's
// flags applied.
func queueFlagValues(cmd *cobra.Command, redisURL, name string) (string, string) {
	if cmd.Flags().Changed("redis-url") {
		redisURL, _ = cmd.Flags().GetString("redis-url")
	}
	if cmd.Flags().Changed("queue") {
		name, _ = cmd.Flags().GetString("queue")
	}
	return redisURL, name
}

func addQueueFlags(cmd *cobra.Command) {
	cmd.Flags().String("redis-url", "redis://localhost:6379/0", "Redis server of the queue")
	cmd.Flags().String("queue", queue.DefaultQueue, "queue name")
}

func init() {
	rootCmd.AddCommand(workerCmd)
	addQueueFlags(workerCmd)
	workerCmd.Flags().Int("concurrency", 2, "jobs processed in parallel")
}
