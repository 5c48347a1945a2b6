package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
)

// Output formats accepted by FormatResults.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds all configuration for batch reprocessing.
type Config struct {
	// Stage settings shared by every sequence
	Pipeline pipeline.Config

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// Sequence discovery settings
	IncludePatterns []string
	ExcludePatterns []string

	// Per-sequence outputs; empty OutputDir writes none
	OutputDir string
	Output    pipeline.OutputOptions

	// Summary settings
	Format     string
	OutputFile string

	// Progress settings
	ShowProgress bool
	Quiet        bool
}

// DefaultConfig stops at the first failure and writes a text summary.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: pipeline.DefaultConfig(),
		Workers:  1,
		Output:   pipeline.DefaultOutputOptions(),
		Format:   FormatText,
	}
}

// Validate checks worker count and summary format.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Format != "" && !slices.Contains([]string{FormatText, FormatJSON, FormatCSV}, c.Format) {
		return fmt.Errorf("unsupported format %q (want text, json or csv)", c.Format)
	}
	return nil
}

// ItemResult is the outcome of one sequence.
type ItemResult struct {
	Sequence pipeline.Sequence
	Record   *storage.Record
	Outputs  []string
	Duration time.Duration
	Err      error
}

// Failed reports whether the sequence could not be processed or saved.
func (r ItemResult) Failed() bool { return r.Err != nil }

// Result holds the result of a batch run.
type Result struct {
	RunID       string
	Items       []ItemResult
	Duration    time.Duration
	WorkerCount int
}

// Processed counts the sequences that were parsed and saved.
func (r *Result) Processed() int {
	n := 0
	for _, it := range r.Items {
		if !it.Failed() {
			n++
		}
	}
	return n
}

// Failed counts the sequences that failed.
func (r *Result) Failed() int { return len(r.Items) - r.Processed() }

// FormatResults formats the batch results in the given format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Run ID: %s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "  Total sequences: %d\n", len(r.Items))
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", r.Processed())
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
}

// FirstError returns the error of the first failed sequence in input order.
func (r *Result) FirstError() error {
	for _, it := range r.Items {
		if it.Err != nil {
			return fmt.Errorf("sequence %s: %w", it.Sequence.Name, it.Err)
		}
	}
	return nil
}

var errNoSequences = errors.New("no screenshot sequences found")
