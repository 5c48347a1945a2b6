package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine answers each image with one detection carrying its path. Paths
// listed in fail return an error; later indexes finish first.
type fakeEngine struct {
	fail  map[string]bool
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Name() string { return "fake" }
func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) Recognize(ctx context.Context, img ocr.Image) ([]ocr.Detection, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.delay > 0 {
		n, _ := strconv.Atoi(img.Path)
		select {
		case <-time.After(e.delay / time.Duration(n+1)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.fail[img.Path] {
		return nil, fmt.Errorf("cannot read %s", img.Path)
	}
	return []ocr.Detection{{Quad: ocr.RectQuad(300, 100, 380, 118), Text: img.Path, Confidence: 0.9}}, nil
}

func images(n int) []ocr.Image {
	out := make([]ocr.Image, n)
	for i := range out {
		out[i] = ocr.Image{Path: strconv.Itoa(i)}
	}
	return out
}

type recordingProgress struct {
	mu       sync.Mutex
	started  int
	progress []int
	errors   []int
	done     bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }
func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}
func (r *recordingProgress) OnComplete() { r.done = true }
func (r *recordingProgress) OnError(current int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, current)
}

func TestDefaultParallelConfig(t *testing.T) {
	cfg := DefaultParallelConfig()
	assert.Positive(t, cfg.MaxWorkers)
	assert.Nil(t, cfg.ProgressCallback)
	assert.Nil(t, cfg.ErrorHandler)
}

func TestRecognizeAll_PreservesOrder(t *testing.T) {
	e := &fakeEngine{delay: 20 * time.Millisecond}
	progress := &recordingProgress{}

	results, err := RecognizeAll(context.Background(), e, images(6), ParallelConfig{MaxWorkers: 3, ProgressCallback: progress})
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, dets := range results {
		require.Len(t, dets, 1)
		assert.Equal(t, strconv.Itoa(i), dets[0].Text)
	}
	assert.Equal(t, 6, e.calls)
	assert.Equal(t, 6, progress.started)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, progress.progress)
	assert.True(t, progress.done)
}

func TestRecognizeAll_SingleWorker(t *testing.T) {
	results, err := RecognizeAll(context.Background(), &fakeEngine{}, images(3), ParallelConfig{MaxWorkers: 1})
	require.NoError(t, err)
	assert.Equal(t, "2", results[2][0].Text)
}

func TestRecognizeAll_Errors(t *testing.T) {
	e := &fakeEngine{fail: map[string]bool{"1": true, "3": true}}
	progress := &recordingProgress{}
	var handled []int

	results, err := RecognizeAll(context.Background(), e, images(4), ParallelConfig{
		MaxWorkers:       2,
		ProgressCallback: progress,
		ErrorHandler:     func(i int, _ ocr.Image, _ error) { handled = append(handled, i) },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 1")
	assert.Equal(t, []int{1, 3}, handled)
	assert.ElementsMatch(t, []int{1, 3}, progress.errors)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
}

func TestRecognizeAll_InvalidInput(t *testing.T) {
	_, err := RecognizeAll(context.Background(), &fakeEngine{}, nil, DefaultParallelConfig())
	require.ErrorIs(t, err, ErrNoImages)

	_, err = RecognizeAll(context.Background(), nil, images(1), DefaultParallelConfig())
	require.Error(t, err)
}

func TestRecognizeAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RecognizeAll(ctx, &fakeEngine{delay: time.Second}, images(4), ParallelConfig{MaxWorkers: 2})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestCalculateParallelStats(t *testing.T) {
	results := [][]ocr.Detection{
		{{Text: "a"}, {Text: "b"}},
		nil,
		{},
	}
	s := CalculateParallelStats(results, 2*time.Second, 4)
	assert.Equal(t, 3, s.TotalImages)
	assert.Equal(t, 1, s.FailedImages)
	assert.Equal(t, 2, s.Detections)
	assert.Equal(t, 4, s.WorkerCount)
	assert.InDelta(t, 1.0, s.ThroughputPerSec, 1e-9)

	empty := CalculateParallelStats(nil, 0, 1)
	assert.Zero(t, empty.ThroughputPerSec)
}
