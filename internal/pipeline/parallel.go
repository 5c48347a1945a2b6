package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
)

// ParallelConfig controls the OCR worker pool of one sequence.
type ParallelConfig struct {
	MaxWorkers       int                         // 0 = runtime.NumCPU()
	ProgressCallback ProgressCallback            // optional
	ErrorHandler     func(int, ocr.Image, error) // optional, called per failed image
}

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image ocr.Image
}

type imageResult struct {
	index int
	dets  []ocr.Detection
	err   error
}

// RecognizeAll runs engine over images with a bounded worker pool. Results
// come back in input order; the first failing image (by index) determines
// the returned error.
func RecognizeAll(ctx context.Context, engine ocr.Engine, images []ocr.Image, cfg ParallelConfig) ([][]ocr.Detection, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if engine == nil {
		return nil, errors.New("no OCR engine configured")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	workers := min(cfg.MaxWorkers, len(images))

	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback.OnStart(len(images))
		defer cfg.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob, len(images))
	results := make(chan imageResult, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go recognizeWorker(ctx, engine, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([][]ocr.Detection, len(images))
	errs := make([]error, len(images))
	processed := 0
	for r := range results {
		ordered[r.index] = r.dets
		errs[r.index] = r.err
		processed++
		if cfg.ProgressCallback != nil {
			if r.err != nil {
				cfg.ProgressCallback.OnError(r.index, r.err)
			}
			cfg.ProgressCallback.OnProgress(processed, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("image %d (%s): %w", i, images[i].Path, err)
		}
		if cfg.ErrorHandler != nil {
			cfg.ErrorHandler(i, images[i], err)
		}
	}
	return ordered, firstErr
}

func recognizeWorker(
	ctx context.Context,
	engine ocr.Engine,
	jobs <-chan imageJob,
	results chan<- imageResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			dets, err := engine.Recognize(ctx, job.image)
			select {
			case results <- imageResult{index: job.index, dets: dets, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats summarizes one OCR pass.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	FailedImages     int           `json:"failed_images"`
	Detections       int           `json:"detections"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats derives throughput from an OCR pass. A nil entry
// in results counts as a failed image.
func CalculateParallelStats(results [][]ocr.Detection, duration time.Duration, workers int) ParallelStats {
	s := ParallelStats{TotalImages: len(results), WorkerCount: workers, TotalDuration: duration}
	for _, dets := range results {
		if dets == nil {
			s.FailedImages++
			continue
		}
		s.Detections += len(dets)
	}
	if ok := s.TotalImages - s.FailedImages; ok > 0 && duration > 0 {
		s.ThroughputPerSec = float64(ok) / duration.Seconds()
	}
	return s
}
