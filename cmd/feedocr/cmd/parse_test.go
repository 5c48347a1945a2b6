package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/MeKo-Tech/feedocr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	testutil.WriteDutchFeed(t, dir)
	return dir
}

func assertDutchFeed(t *testing.T, doc layout.Document) {
	t.Helper()
	assert.Equal(t, layout.ParsedPost{Author: "Jan Jansen", Date: "3 uur", Text: "Wat een dag"}, doc.Post)
	require.Len(t, doc.Comments, len(testutil.DutchFeedComments))
	for i, want := range testutil.DutchFeedComments {
		assert.Equal(t, layout.ParsedComment{Username: want[0], Date: want[1], Text: want[2]}, doc.Comments[i])
	}
}

func TestParseCommand_JSON(t *testing.T) {
	root := t.TempDir()
	dir := writeFeed(t, root, "jan_jansen")
	outDir := filepath.Join(root, "out")

	var stdout, stderr bytes.Buffer
	err := executeCommandWith(t, &stdout, &stderr, "parse", dir, "--engine", "json", "--output-dir", outDir)
	require.NoError(t, err, stderr.String())

	var doc layout.Document
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assertDutchFeed(t, doc)

	for _, name := range []string{pipeline.ParsedDataFile, pipeline.OCRResultsFile, pipeline.CombinedImage} {
		assert.FileExists(t, filepath.Join(outDir, "jan_jansen", name))
	}
	assert.Contains(t, stderr.String(), "Parsing sequence")
}

func TestParseCommand_TextAndSave(t *testing.T) {
	root := t.TempDir()
	dir := writeFeed(t, root, "jan_jansen")
	storeDir := filepath.Join(root, "store")
	t.Setenv("FEEDOCR_STORAGE_DIR", storeDir)

	var stdout, stderr bytes.Buffer
	err := executeCommandWith(t, &stdout, &stderr, "parse", dir,
		"--engine", "json", "--format", "text", "--output-dir", "", "--save", "--run-id", "run-1")
	require.NoError(t, err, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Author: Jan Jansen")
	assert.Contains(t, out, "Comments (5):")
	assert.Contains(t, out, "1. Piet (2 d): Mooie foto!")

	store, err := storage.NewFileStore(storeDir)
	require.NoError(t, err)
	rec, err := store.Get(t.Context(), "jan_jansen")
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "json", rec.Engine)
	assert.True(t, filepath.IsAbs(rec.ScreenshotDir))
	assertDutchFeed(t, rec.Document)
}

func TestParseCommand_Errors(t *testing.T) {
	t.Run("missing argument", func(t *testing.T) {
		_, err := executeCommand(t, "parse")
		require.Error(t, err)
	})

	t.Run("no screenshots", func(t *testing.T) {
		_, err := executeCommand(t, "parse", t.TempDir(), "--engine", "json", "--output-dir", "")
		require.ErrorIs(t, err, pipeline.ErrNoImages)
	})

	t.Run("unknown format", func(t *testing.T) {
		dir := writeFeed(t, t.TempDir(), "seq")
		_, err := executeCommand(t, "parse", dir, "--engine", "json", "--format", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported format")
	})

	t.Run("unknown engine", func(t *testing.T) {
		dir := writeFeed(t, t.TempDir(), "seq")
		_, err := executeCommand(t, "parse", dir, "--engine", "paddle", "--output-dir", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid OCR engine")
	})
}

func TestWriteDocument(t *testing.T) {
	doc := layout.Document{
		Post:     layout.ParsedPost{Author: "Jan", Date: "3 uur"},
		Comments: []layout.ParsedComment{{Username: "Piet", Date: "2 d", Text: "Mooi"}},
	}

	var text bytes.Buffer
	require.NoError(t, writeDocument(&text, doc, "text"))
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	assert.Equal(t, "Author: Jan", lines[0])
	assert.Equal(t, "  1. Piet (2 d): Mooi", lines[len(lines)-1])

	var js bytes.Buffer
	require.NoError(t, writeDocument(&js, doc, "json"))
	var back layout.Document
	require.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, doc, back)
}
