package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
)

// processor runs sequences through one pipeline and saves the records.
type processor struct {
	pl     *pipeline.Pipeline
	store  storage.Store
	config *Config
	runID  string
	logger *slog.Logger
	now    func() time.Time
}

// processSingleSequence parses one sequence, writes its outputs and saves
// its record.
func (p *processor) processSingleSequence(ctx context.Context, seq pipeline.Sequence) ItemResult {
	start := time.Now()
	item := ItemResult{Sequence: seq}
	defer func() { item.Duration = time.Since(start) }()

	res, err := p.pl.ProcessSequence(ctx, seq)
	if err != nil {
		item.Err = err
		return item
	}

	if p.config.OutputDir != "" {
		item.Outputs, err = pipeline.WriteOutputs(filepath.Join(p.config.OutputDir, seq.Name), res, p.config.Output)
		if err != nil {
			item.Err = fmt.Errorf("write outputs: %w", err)
			return item
		}
	}

	rec := storage.Record{
		ID:            seq.Name,
		RunID:         p.runID,
		ScreenshotDir: seq.Dir,
		ReprocessDate: p.now().UTC(),
		Document:      res.Document,
	}
	if e := p.pl.Engine(); e != nil {
		rec.Engine = e.Name()
	}
	if p.store != nil {
		if err := p.store.Save(ctx, rec); err != nil {
			item.Err = err
			return item
		}
	}
	item.Record = &rec

	p.logger.Info("Processed sequence",
		"sequence", seq.Name, "images", len(seq.Images), "comments", len(res.Document.Comments))
	return item
}

type sequenceJob struct {
	index int
	seq   pipeline.Sequence
}

// processSequencesParallel fans the sequences out to workers. Results keep
// input order. Without ContinueOnError the first failure cancels the
// remaining work; sequences that never ran are reported as cancelled.
func (p *processor) processSequencesParallel(ctx context.Context, seqs []pipeline.Sequence,
	progress pipeline.ProgressCallback) []ItemResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(max(p.config.Workers, 1), len(seqs))
	items := make([]ItemResult, len(seqs))
	done := make([]bool, len(seqs))

	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}
	progress.OnStart(len(seqs))
	defer progress.OnComplete()

	jobs := make(chan sequenceJob)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				item := p.processSingleSequence(ctx, job.seq)

				mu.Lock()
				items[job.index] = item
				done[job.index] = true
				completed++
				if item.Err != nil {
					progress.OnError(job.index, item.Err)
					p.logger.Error("Sequence failed", "sequence", job.seq.Name, "error", item.Err)
					if !p.config.ContinueOnError {
						cancel()
					}
				}
				progress.OnProgress(completed, len(seqs))
				mu.Unlock()
			}
		}()
	}

feed:
	for i, seq := range seqs {
		select {
		case jobs <- sequenceJob{index: i, seq: seq}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := range items {
		if !done[i] {
			items[i] = ItemResult{Sequence: seqs[i], Err: fmt.Errorf("not processed: %w", context.Canceled)}
		}
	}
	return items
}
