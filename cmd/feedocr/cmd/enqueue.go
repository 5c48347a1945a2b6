package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/queue"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// enqueueCmd submits sequences to the queue.
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <sequence-dir>...",
	Short: "Submit screenshot sequences to the parse queue",
	Long: `Submit one job per sequence directory. The jobs of one call share a
run id, which is stored with every document the workers save.

Directories are checked for numbered screenshots before they are queued.
Paths are made absolute since workers may run elsewhere.

Examples:
  feedocr enqueue screenshots/post-42
  feedocr enqueue screenshots/* --run-id nightly-2024-05-01`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runEnqueueCommand,
}

func runEnqueueCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	qcfg := cfg.ToQueueConfig()
	qcfg.RedisURL, qcfg.Queue = queueFlagValues(cmd, qcfg.RedisURL, qcfg.Queue)
	qcfg.Timeout, _ = cmd.Flags().GetDuration("task-timeout")
	qcfg.MaxRetry, _ = cmd.Flags().GetInt("max-retry")

	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}

	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		seq, err := pipeline.DiscoverSequence(arg)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		dir, err := filepath.Abs(seq.Dir)
		if err != nil {
			return err
		}
		dirs = append(dirs, dir)
	}

	client, err := queue.NewClient(qcfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	for _, dir := range dirs {
		id, err := client.EnqueueSequence(cmd.Context(), dir, runID)
		if err != nil {
			return err
		}
		slog.Debug("Sequence enqueued", "task_id", id, "dir", dir)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, dir)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Enqueued %d sequence(s) on %q (run %s)\n", len(dirs), qcfg.Queue, runID)
	return nil
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	addQueueFlags(enqueueCmd)
	enqueueCmd.Flags().String("run-id", "", "run identifier shared by the jobs (default: random)")
	enqueueCmd.Flags().Duration("task-timeout", 0, "time limit of one job (0 keeps the queue default)")
	enqueueCmd.Flags().Int("max-retry", 0, "retries of a failed job (0 keeps the queue default)")
}
