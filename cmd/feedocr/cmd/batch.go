package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/feedocr/internal/batch"
	"github.com/MeKo-Tech/feedocr/internal/config"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/spf13/cobra"
)

// batchCmd reprocesses many screenshot sequences in parallel.
var batchCmd = &cobra.Command{
	Use:   "batch <dir|sequence-dir>...",
	Short: "Reprocess many screenshot sequences in parallel",
	Long: `Parse every screenshot sequence found under the given directories and
save each document to the storage backend.

An argument holding numbered screenshots is one sequence; otherwise each
of its subdirectories holding numbered screenshots is one. A summary of
the run is printed at the end.

Examples:
  feedocr batch screenshots/
  feedocr batch screenshots/ --workers 4 --continue-on-error
  feedocr batch screenshots/ --exclude "*-draft" --format csv --output runs.csv`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig maps the configuration to batch.Config. Flags the
// user set explicitly override config values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	if cmd.Flags().Changed("output-dir") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("no-annotate") {
		noAnnotate, _ := cmd.Flags().GetBool("no-annotate")
		cfg.Output.Annotate = !noAnnotate
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.File, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("ocr-workers") {
		cfg.OCR.Workers, _ = cmd.Flags().GetInt("ocr-workers")
	}
	if cmd.Flags().Changed("continue-on-error") {
		cfg.Batch.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	batchConfig, err := cfg.ToBatchConfig()
	if err != nil {
		return nil, err
	}

	// Discovery and progress settings are CLI-only
	batchConfig.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	batchConfig.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	batchConfig.ShowProgress, _ = cmd.Flags().GetBool("progress")
	batchConfig.Quiet, _ = cmd.Flags().GetBool("quiet")
	return batchConfig, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	batchConfig, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := slog.Default()
	engine, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	var store storage.Store
	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
		store, err = openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	result, err := batch.ProcessBatch(ctx, args, batchConfig, engine, store, logger)
	if result == nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	if saveErr := result.SaveResults(cmd.OutOrStdout(), batchConfig.Format, batchConfig.OutputFile, batchConfig.Quiet); saveErr != nil {
		return fmt.Errorf("failed to save results: %w", saveErr)
	}
	result.PrintStats(cmd.OutOrStdout(), batchConfig.Quiet)

	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Output flags
	batchCmd.Flags().StringP("format", "f", "text", "summary format: text, json, csv")
	batchCmd.Flags().StringP("output", "o", "", "summary file (default: stdout)")
	batchCmd.Flags().String("output-dir", "", "directory for per-sequence outputs (empty writes none)")
	batchCmd.Flags().Bool("no-annotate", false, "skip the annotated combined images")
	batchCmd.Flags().Bool("no-save", false, "do not save documents to the storage backend")

	// Parallel processing flags
	batchCmd.Flags().IntP("workers", "w", 0, "sequences processed in parallel (default: from config)")
	batchCmd.Flags().Int("ocr-workers", 0, "OCR workers shared by all sequences (default: from config)")
	batchCmd.Flags().Bool("continue-on-error", false, "keep going when a sequence fails")

	// Sequence discovery flags
	batchCmd.Flags().StringSlice("include", []string{}, "sequence directory patterns to include")
	batchCmd.Flags().StringSlice("exclude", []string{}, "sequence directory patterns to exclude")

	// Progress flags
	batchCmd.Flags().Bool("progress", false, "show progress bar")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output and statistics")
}
