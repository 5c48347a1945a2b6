package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/config"
	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// parseCmd parses one screenshot sequence.
var parseCmd = &cobra.Command{
	Use:   "parse <sequence-dir>",
	Short: "Parse one screenshot sequence into a document",
	Long: `Run OCR over the numbered screenshots of a directory, stitch them into
one capture and print the parsed post and comments.

When an output directory is set, parsed_data.json, ocr_results.json and
the annotated combined images are written into <output-dir>/<sequence>.

Examples:
  feedocr parse screenshots/post-42
  feedocr parse screenshots/post-42 --format text --output-dir ""
  feedocr parse screenshots/post-42 --engine json --save`,
	Args: cobra.ExactArgs(1),
	RunE: runParseCommand,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("format", "f", "json", "document format printed on stdout (json, text)")
	parseCmd.Flags().StringP("output-dir", "o", "annotated", "directory for per-sequence outputs (empty writes none)")
	parseCmd.Flags().Bool("no-annotate", false, "skip the annotated combined images")
	parseCmd.Flags().Bool("save", false, "save the document to the configured storage backend")
	parseCmd.Flags().String("run-id", "", "run identifier stored with the document (default: random)")
	parseCmd.Flags().String("detections-dir", "", "directory of <frame>.json detections for the json engine")
	parseCmd.Flags().Int("workers", 0, "parallel OCR workers (default: from config)")
	parseCmd.Flags().Bool("progress", false, "show per-screenshot progress")
}

func runParseCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if cmd.Flags().Changed("output-dir") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("no-annotate") {
		noAnnotate, _ := cmd.Flags().GetBool("no-annotate")
		cfg.Output.Annotate = !noAnnotate
	}
	if cmd.Flags().Changed("detections-dir") {
		cfg.OCR.DetectionsDir, _ = cmd.Flags().GetString("detections-dir")
	}
	if cmd.Flags().Changed("workers") {
		cfg.OCR.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "text" {
		return fmt.Errorf("unsupported format %q (must be json or text)", format)
	}

	seq, err := pipeline.DiscoverSequence(args[0])
	if err != nil {
		return err
	}

	var progress pipeline.ProgressCallback
	if show, _ := cmd.Flags().GetBool("progress"); show {
		progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Screenshots: ")
	}

	ctx := cmd.Context()
	logger := slog.Default()
	pl, err := buildPipeline(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	logger.Info("Parsing sequence", "sequence", seq.Name, "screenshots", len(seq.Images), "engine", pl.Engine().Name())
	res, err := pl.ProcessSequence(ctx, seq)
	if err != nil {
		return fmt.Errorf("parse %s: %w", seq.Name, err)
	}

	if cfg.Output.Dir != "" {
		opts, err := cfg.ToOutputOptions()
		if err != nil {
			return err
		}
		written, err := pipeline.WriteOutputs(filepath.Join(cfg.Output.Dir, seq.Name), res, opts)
		if err != nil {
			return fmt.Errorf("write outputs: %w", err)
		}
		logger.Debug("Outputs written", "files", written)
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		runID, _ := cmd.Flags().GetString("run-id")
		if runID == "" {
			runID = uuid.NewString()
		}
		if err := saveDocument(cmd, cfg, res, pl.Engine().Name(), runID); err != nil {
			return err
		}
	}

	return writeDocument(cmd.OutOrStdout(), res.Document, format)
}

func saveDocument(cmd *cobra.Command, cfg *config.Config, res *pipeline.Result, engine, runID string) error {
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dir, err := filepath.Abs(res.Sequence.Dir)
	if err != nil {
		dir = filepath.Clean(res.Sequence.Dir)
	}
	rec := storage.Record{
		ID:            res.Sequence.Name,
		RunID:         runID,
		ScreenshotDir: dir,
		ReprocessDate: time.Now().UTC(),
		Engine:        engine,
		Document:      res.Document,
	}
	if err := store.Save(cmd.Context(), rec); err != nil {
		return fmt.Errorf("save %s: %w", rec.ID, err)
	}
	slog.Info("Document saved", "id", rec.ID, "run_id", runID, "backend", cfg.Storage.Backend)
	return nil
}

// writeDocument prints doc as indented JSON or as readable text.
func writeDocument(w io.Writer, doc layout.Document, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Author: %s\n", doc.Post.Author)
	fmt.Fprintf(&sb, "Date:   %s\n", doc.Post.Date)
	if doc.Post.Text != "" {
		fmt.Fprintf(&sb, "\n%s\n", doc.Post.Text)
	}
	fmt.Fprintf(&sb, "\nComments (%d):\n", len(doc.Comments))
	for i, c := range doc.Comments {
		fmt.Fprintf(&sb, "%3d. %s (%s): %s\n", i+1, c.Username, c.Date, c.Text)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
