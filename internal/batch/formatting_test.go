package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	return &Result{
		RunID: "run-1",
		Items: []ItemResult{
			{
				Sequence: pipeline.Sequence{Name: "alpha", Dir: "shots/alpha"},
				Record: &storage.Record{ID: "alpha", Document: layout.Document{
					Post:     layout.ParsedPost{Author: "Jan", Date: "3 uur", Text: "Wat een dag"},
					Comments: []layout.ParsedComment{{Username: "Piet", Date: "2 d", Text: "Mooi"}},
				}},
				Duration: 1500 * time.Millisecond,
			},
			{
				Sequence: pipeline.Sequence{Name: "beta", Dir: "shots/beta"},
				Err:      errors.New("open detections: missing"),
			},
		},
		Duration:    2 * time.Second,
		WorkerCount: 2,
	}
}

func TestFormatText(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatText)
	require.NoError(t, err)
	assert.Contains(t, out, "# alpha\nJan (3 uur): Wat een dag\n  - Piet (2 d): Mooi\n")
	assert.Contains(t, out, "# beta\nerror: open detections: missing\n")
	assert.True(t, strings.HasSuffix(out, "Processed: 1, Failed: 1\n"))

	def, err := sampleResult().FormatResults("")
	require.NoError(t, err)
	assert.Equal(t, out, def)
}

func TestFormatJSON(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatJSON)
	require.NoError(t, err)

	var got jsonSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Sequences, 2)
	assert.Equal(t, "ok", got.Sequences[0].Status)
	assert.Equal(t, int64(1500), got.Sequences[0].DurationMs)
	require.NotNil(t, got.Sequences[0].Document)
	assert.Equal(t, "Jan", got.Sequences[0].Document.Post.Author)
	assert.Equal(t, "failed", got.Sequences[1].Status)
	assert.Nil(t, got.Sequences[1].Document)
	assert.Equal(t, "open detections: missing", got.Sequences[1].Error)
}

func TestFormatCSV(t *testing.T) {
	out, err := sampleResult().FormatResults(FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"sequence", "screenshot_dir", "status", "author", "comments", "duration_ms", "error"}, rows[0])
	assert.Equal(t, []string{"alpha", "shots/alpha", "ok", "Jan", "1", "1500", ""}, rows[1])
	assert.Equal(t, []string{"beta", "shots/beta", "failed", "", "", "0", "open detections: missing"}, rows[2])
}

func TestFormatUnsupported(t *testing.T) {
	_, err := sampleResult().FormatResults("yaml")
	require.Error(t, err)
}
