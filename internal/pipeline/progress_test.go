package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	callback := NoOpProgressCallback{}
	callback.OnStart(10)
	callback.OnProgress(5, 10)
	callback.OnComplete()
	callback.OnError(3, assert.AnError)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ")

	callback.OnStart(10)
	assert.Contains(t, buf.String(), "Test: 0/10 (0.0%)")

	buf.Reset()
	callback.OnProgress(5, 10)
	output := buf.String()
	assert.Contains(t, output, "Test: ")
	assert.Contains(t, output, "5/10")
	assert.Contains(t, output, "50.0%")

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "Test: Completed")

	buf.Reset()
	callback.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "Test: Error at item 3")
}

func TestConsoleProgressCallback_Width(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "").WithWidth(10)
	callback.OnStart(4)

	buf.Reset()
	callback.OnProgress(2, 4)
	output := buf.String()
	assert.Equal(t, 5, strings.Count(output, "█"))
	assert.Equal(t, 5, strings.Count(output, "░"))
}

func TestConsoleProgressCallback_Throttling(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ")
	callback.OnStart(10)

	buf.Reset()
	callback.OnProgress(1, 10)
	assert.NotEmpty(t, buf.String())

	buf.Reset()
	callback.OnProgress(2, 10)
	assert.Empty(t, buf.String(), "updates inside the interval are skipped")

	callback.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10", "the final update is always drawn")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	callback := NewLogProgressCallback(logger, slog.LevelInfo, "OCR ").WithInterval(2)

	callback.OnStart(5)
	callback.OnProgress(1, 5)
	callback.OnProgress(2, 5)
	callback.OnProgress(3, 5)
	callback.OnProgress(5, 5)
	callback.OnError(4, assert.AnError)
	callback.OnComplete()

	output := buf.String()
	assert.Contains(t, output, `msg="OCR Starting" total=5`)
	assert.Contains(t, output, "current=2")
	assert.NotContains(t, output, "current=1 ")
	assert.NotContains(t, output, "current=3 ")
	assert.Contains(t, output, "current=5")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, `msg="OCR Completed"`)
}

func TestLogProgressCallback_DefaultLogger(t *testing.T) {
	callback := NewLogProgressCallback(nil, slog.LevelDebug, "")
	assert.NotNil(t, callback.logger)
	assert.Equal(t, 10, callback.interval)
	assert.Equal(t, 10, callback.WithInterval(0).interval)
}
