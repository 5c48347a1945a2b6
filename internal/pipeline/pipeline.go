// Package pipeline runs a screenshot sequence end to end: OCR per image,
// content-area conversion, alignment, deduplication and layout parsing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/align"
	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/MeKo-Tech/feedocr/internal/dedup"
	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/ocr"
)

// Config holds the tunables of every stage.
type Config struct {
	Convert    ocr.ConvertOptions
	Align      align.Options
	DedupRatio float64
	Markers    layout.Markers
	Layout     layout.Options
	Parallel   ParallelConfig
}

// DefaultConfig returns the defaults for Dutch desktop screenshots.
func DefaultConfig() Config {
	markers, err := layout.MarkersFor("nl")
	if err != nil {
		panic(err)
	}
	return Config{
		Convert:    ocr.DefaultConvertOptions(),
		Align:      align.DefaultOptions(),
		DedupRatio: dedup.DefaultMinRatio,
		Markers:    markers,
		Layout:     layout.DefaultOptions(),
		Parallel:   DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	engine ocr.Engine
	logger *slog.Logger
}

// NewBuilder creates a builder with defaults and no engine.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEngine sets the OCR engine. A pipeline without one can only process
// detections supplied by the caller.
func (b *Builder) WithEngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithViewport sets the content area applied at ingestion.
func (b *Builder) WithViewport(vp ocr.Viewport) *Builder {
	b.cfg.Convert.Viewport = vp
	return b
}

// WithMinConfidence drops detections below conf.
func (b *Builder) WithMinConfidence(conf float64) *Builder {
	b.cfg.Convert.MinConfidence = conf
	return b
}

// WithMarkers selects the locale markers.
func (b *Builder) WithMarkers(m layout.Markers) *Builder {
	b.cfg.Markers = m
	return b
}

// WithAlignment sets the anchor similarity floor and maximum x drift.
func (b *Builder) WithAlignment(minSimilarity, maxXDelta float64) *Builder {
	if minSimilarity > 0 {
		b.cfg.Align.MinSimilarity = minSimilarity
	}
	if maxXDelta > 0 {
		b.cfg.Align.MaxXDelta = maxXDelta
	}
	return b
}

// WithDedupRatio sets the coverage above which the smaller box is dropped.
func (b *Builder) WithDedupRatio(r float64) *Builder {
	if r > 0 {
		b.cfg.DedupRatio = r
	}
	return b
}

// WithWorkers bounds the OCR worker pool.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Parallel.MaxWorkers = n
	}
	return b
}

// WithProgress reports per-image OCR progress.
func (b *Builder) WithProgress(cb ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = cb
	return b
}

// WithLogger sets the logger of the pipeline and its stages.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Config returns the configuration accumulated so far.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := b.cfg
	if cfg.DedupRatio < 0 || cfg.DedupRatio > 1 {
		return nil, fmt.Errorf("dedup ratio must be within [0,1], got %v", cfg.DedupRatio)
	}
	cfg.Align.Logger = logger
	cfg.Layout.Logger = logger

	parser, err := layout.NewParser(cfg.Markers, cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("create layout parser: %w", err)
	}
	return &Pipeline{cfg: cfg, engine: b.engine, parser: parser, logger: logger}, nil
}

// Pipeline is safe for concurrent use; runs share no mutable state.
type Pipeline struct {
	cfg    Config
	engine ocr.Engine
	parser *layout.Parser
	logger *slog.Logger
}

// Engine returns the configured OCR engine, or nil.
func (p *Pipeline) Engine() ocr.Engine { return p.engine }

// Parser returns the layout parser.
func (p *Pipeline) Parser() *layout.Parser { return p.parser }

// Close releases the OCR engine.
func (p *Pipeline) Close() error {
	if p == nil || p.engine == nil {
		return nil
	}
	return p.engine.Close()
}

// RunOption customizes a single run.
type RunOption func(*runOptions)

type runOptions struct {
	onStage func(StageEvent)
}

// WithStageObserver calls fn after each stage of the run.
func WithStageObserver(fn func(StageEvent)) RunOption {
	return func(o *runOptions) { o.onStage = fn }
}

func collectRunOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.onStage == nil {
		o.onStage = func(StageEvent) {}
	}
	return o
}

// ProcessSequence runs OCR on each screenshot of seq and then the core stages.
func (p *Pipeline) ProcessSequence(ctx context.Context, seq Sequence, opts ...RunOption) (*Result, error) {
	images := make([]ocr.Image, len(seq.Images))
	for i, path := range seq.Images {
		images[i] = ocr.Image{Path: path}
	}
	res, err := p.ProcessImages(ctx, images, opts...)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", seq.Name, err)
	}
	res.Sequence = seq
	return res, nil
}

// ProcessImages runs OCR on the ordered screenshots and then the core stages.
func (p *Pipeline) ProcessImages(ctx context.Context, images []ocr.Image, opts ...RunOption) (*Result, error) {
	if p.engine == nil {
		return nil, errors.New("no OCR engine configured")
	}
	o := collectRunOptions(opts)
	start := time.Now()

	dets, err := RecognizeAll(ctx, p.engine, images, p.cfg.Parallel)
	if err != nil {
		return nil, err
	}
	ocrDur := time.Since(start)
	stats := CalculateParallelStats(dets, ocrDur, p.cfg.Parallel.MaxWorkers)
	p.logger.Debug("OCR complete",
		"engine", p.engine.Name(), "images", stats.TotalImages,
		"detections", stats.Detections, "throughput_per_sec", stats.ThroughputPerSec)
	o.onStage(StageEvent{Stage: StageOCR, Images: len(images), Boxes: stats.Detections})

	res, err := p.ProcessDetections(ctx, dets, opts...)
	if err != nil {
		return nil, err
	}
	for i := range res.Images {
		res.Images[i].Source = images[i]
	}
	res.Timing.OCRNs = ocrDur.Nanoseconds()
	res.Timing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}

// ProcessDetections runs the core stages on detections the caller already
// has, one slice per screenshot in scroll order.
func (p *Pipeline) ProcessDetections(ctx context.Context, perImage [][]ocr.Detection, opts ...RunOption) (*Result, error) {
	o := collectRunOptions(opts)
	start := time.Now()

	res := &Result{Images: make([]ImageResult, len(perImage))}
	seq := make([]box.Collection, len(perImage))
	total := 0
	for i, dets := range perImage {
		c, err := ocr.ToCollection(dets, p.cfg.Convert)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		seq[i] = c
		total += c.Len()
		res.Images[i] = ImageResult{Detections: dets, Boxes: c}
		p.logger.Debug("Converted detections", "image", i, "detections", len(dets), "boxes", c.Len())
	}
	o.onStage(StageEvent{Stage: StageConvert, Images: len(perImage), Boxes: total})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.runCore(res, seq, o)
	res.Timing.CoreNs = time.Since(start).Nanoseconds()
	res.Timing.TotalNs = res.Timing.CoreNs
	return res, nil
}

// ProcessCollections runs alignment, deduplication and parsing on
// already converted per-image collections.
func (p *Pipeline) ProcessCollections(seq []box.Collection, opts ...RunOption) *Result {
	o := collectRunOptions(opts)
	start := time.Now()
	res := &Result{Images: make([]ImageResult, len(seq))}
	for i, c := range seq {
		res.Images[i] = ImageResult{Boxes: c}
	}
	p.runCore(res, seq, o)
	res.Timing.CoreNs = time.Since(start).Nanoseconds()
	res.Timing.TotalNs = res.Timing.CoreNs
	return res
}

func (p *Pipeline) runCore(res *Result, seq []box.Collection, o runOptions) {
	res.Unified, res.Offsets = align.Unify(seq, p.cfg.Align)
	p.logger.Debug("Aligned sequence", "offsets", res.Offsets, "boxes", res.Unified.Len())
	o.onStage(StageEvent{Stage: StageAlign, Images: len(seq), Boxes: res.Unified.Len()})

	res.Deduped = dedup.RemoveDuplicates(res.Unified, p.cfg.DedupRatio)
	p.logger.Debug("Removed duplicates", "before", res.Unified.Len(), "after", res.Deduped.Len())
	o.onStage(StageEvent{Stage: StageDedup, Boxes: res.Deduped.Len()})

	res.Regions = p.parser.FindCommentRegions(res.Deduped)
	res.Document = layout.Document{Post: p.parser.ParsePost(res.Deduped), Comments: []layout.ParsedComment{}}
	for _, r := range res.Regions {
		if r.Comment != nil {
			res.Document.Comments = append(res.Document.Comments, *r.Comment)
		}
	}
	p.logger.Debug("Parsed document", "regions", len(res.Regions), "comments", len(res.Document.Comments))
	o.onStage(StageEvent{Stage: StageParse, Boxes: res.Deduped.Len()})
	o.onStage(StageEvent{Stage: StageDone})
}
