// Package align infers the vertical scroll offset between consecutive
// screenshots from text that appears in both, and merges the per-image
// detections into one coordinate space anchored at the first image.
package align

import (
	"log/slog"
	"math"

	"github.com/MeKo-Tech/feedocr/internal/box"
)

// Options tunes anchor matching.
type Options struct {
	// MinSimilarity is the lowest text similarity accepted for an anchor.
	MinSimilarity float64
	// MaxXDelta is the largest horizontal distance between anchor X1 values.
	MaxXDelta float64
	// Similarity scores two texts in [0,1]. Defaults to Similarity.
	Similarity func(a, b string) float64
	Logger     *slog.Logger
}

// DefaultOptions returns the matching thresholds used for feed screenshots.
func DefaultOptions() Options {
	return Options{
		MinSimilarity: 0.9,
		MaxXDelta:     10,
		Similarity:    Similarity,
	}
}

func (o Options) withDefaults() Options {
	if o.Similarity == nil {
		o.Similarity = Similarity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Anchor is a text detection matched across two consecutive images.
type Anchor struct {
	Prev  box.Box
	Curr  box.Box
	Score float64
}

// Offset is the vertical shift that maps Curr onto Prev.
func (a Anchor) Offset() float64 {
	return a.Prev.YMid() - a.Curr.YMid()
}

type entry struct {
	text string
	box  box.Box
}

// uniqueTexts keeps texts that occur exactly once, in first-occurrence order.
func uniqueTexts(c box.Collection) []entry {
	count := make(map[string]int, c.Len())
	for _, b := range c.Boxes() {
		count[b.Text]++
	}
	out := make([]entry, 0, len(count))
	for _, b := range c.Boxes() {
		if count[b.Text] == 1 {
			out = append(out, entry{text: b.Text, box: b})
		}
	}
	return out
}

// Anchors matches every unique current text, in OCR order, to the best unused
// unique previous text passing the similarity and horizontal checks.
func Anchors(prev, curr box.Collection, opts Options) []Anchor {
	opts = opts.withDefaults()
	if prev.Empty() || curr.Empty() {
		return nil
	}

	prevUnique := uniqueTexts(prev)
	used := make(map[string]struct{}, len(prevUnique))
	var anchors []Anchor

	for _, c := range uniqueTexts(curr) {
		best := -1
		bestScore := 0.0
		for i, p := range prevUnique {
			if _, ok := used[p.text]; ok {
				continue
			}
			score := opts.Similarity(c.text, p.text)
			if score < opts.MinSimilarity {
				continue
			}
			if math.Abs(c.box.X1-p.box.X1) > opts.MaxXDelta {
				continue
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			continue
		}
		used[prevUnique[best].text] = struct{}{}
		anchors = append(anchors, Anchor{Prev: prevUnique[best].box, Curr: c.box, Score: bestScore})
	}
	return anchors
}

// Pair returns the offset from the first accepted anchor between two images.
func Pair(prev, curr box.Collection, opts Options) (float64, bool) {
	anchors := Anchors(prev, curr, opts)
	if len(anchors) == 0 {
		return 0, false
	}
	return anchors[0].Offset(), true
}

// Offsets returns the cumulative offset of every image relative to the first.
// Each image is compared with its raw predecessor; an image without anchors
// inherits the previous cumulative offset.
func Offsets(seq []box.Collection, opts Options) []float64 {
	opts = opts.withDefaults()
	offsets := make([]float64, len(seq))
	for i := 1; i < len(seq); i++ {
		offset, ok := Pair(seq[i-1], seq[i], opts)
		if !ok {
			opts.Logger.Debug("No alignment anchor found, keeping previous offset",
				"image", i, "cumulative", offsets[i-1])
			offsets[i] = offsets[i-1]
			continue
		}
		offsets[i] = offsets[i-1] + offset
		opts.Logger.Debug("Aligned image", "image", i, "offset", offset, "cumulative", offsets[i])
	}
	return offsets
}

// Unify shifts every image by its cumulative offset and concatenates them in
// image order, preserving OCR order within each image.
func Unify(seq []box.Collection, opts Options) (box.Collection, []float64) {
	offsets := Offsets(seq, opts)
	shifted := make([]box.Collection, len(seq))
	for i, c := range seq {
		shifted[i] = c.ApplyOffset(offsets[i])
	}
	return box.Concat(shifted...), offsets
}
