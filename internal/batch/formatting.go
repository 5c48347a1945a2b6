package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/feedocr/internal/layout"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(r)
	case FormatCSV:
		return formatCSV(r)
	case "", FormatText:
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

type jsonItem struct {
	Sequence   string           `json:"sequence"`
	Dir        string           `json:"screenshot_dir"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Document   *layout.Document `json:"document,omitempty"`
}

type jsonSummary struct {
	RunID     string     `json:"run_id"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	Sequences []jsonItem `json:"sequences"`
}

func status(it ItemResult) string {
	if it.Failed() {
		return "failed"
	}
	return "ok"
}

// formatJSON formats results as JSON.
func formatJSON(r *Result) (string, error) {
	out := jsonSummary{RunID: r.RunID, Processed: r.Processed(), Failed: r.Failed(), Sequences: make([]jsonItem, len(r.Items))}
	for i, it := range r.Items {
		ji := jsonItem{
			Sequence:   it.Sequence.Name,
			Dir:        it.Sequence.Dir,
			Status:     status(it),
			DurationMs: it.Duration.Milliseconds(),
		}
		if it.Err != nil {
			ji.Error = it.Err.Error()
		}
		if it.Record != nil {
			ji.Document = &it.Record.Document
		}
		out.Sequences[i] = ji
	}
	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

// formatCSV writes one row per sequence.
func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"sequence", "screenshot_dir", "status", "author", "comments", "duration_ms", "error"}}
	for _, it := range r.Items {
		var author, comments, errText string
		if it.Record != nil {
			author = it.Record.Document.Post.Author
			comments = strconv.Itoa(len(it.Record.Document.Comments))
		}
		if it.Err != nil {
			errText = it.Err.Error()
		}
		rows = append(rows, []string{
			it.Sequence.Name, it.Sequence.Dir, status(it), author, comments,
			strconv.FormatInt(it.Duration.Milliseconds(), 10), errText,
		})
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText formats results as plain text.
func formatText(r *Result) string {
	var output strings.Builder
	for i, it := range r.Items {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", it.Sequence.Name))
		if it.Err != nil {
			output.WriteString(fmt.Sprintf("error: %v\n", it.Err))
			continue
		}
		if it.Record == nil {
			continue
		}
		doc := it.Record.Document
		output.WriteString(fmt.Sprintf("%s (%s): %s\n", doc.Post.Author, doc.Post.Date, doc.Post.Text))
		for _, c := range doc.Comments {
			output.WriteString(fmt.Sprintf("  - %s (%s): %s\n", c.Username, c.Date, c.Text))
		}
	}
	output.WriteString(fmt.Sprintf("\nProcessed: %d, Failed: %d\n", r.Processed(), r.Failed()))
	return output.String()
}
