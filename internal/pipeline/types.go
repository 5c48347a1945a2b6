package pipeline

import (
	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/ocr"
)

// Stage names a step of a sequence run.
type Stage string

const (
	StageOCR     Stage = "ocr"
	StageConvert Stage = "convert"
	StageAlign   Stage = "align"
	StageDedup   Stage = "dedup"
	StageParse   Stage = "parse"
	StageDone    Stage = "done"
)

// StageEvent is emitted when a stage finishes.
type StageEvent struct {
	Stage  Stage `json:"stage"`
	Images int   `json:"images,omitempty"`
	Boxes  int   `json:"boxes,omitempty"`
}

// ImageResult is the OCR output of one screenshot.
type ImageResult struct {
	Source     ocr.Image       `json:"-"`
	Detections []ocr.Detection `json:"detections"`
	Boxes      box.Collection  `json:"-"`
}

// Result is everything a sequence run produces.
type Result struct {
	Sequence Sequence        `json:"sequence"`
	Images   []ImageResult   `json:"-"`
	Offsets  []float64       `json:"offsets"`
	Unified  box.Collection  `json:"-"`
	Deduped  box.Collection  `json:"-"`
	Regions  []layout.Region `json:"-"`
	Document layout.Document `json:"document"`
	Timing   Timing          `json:"timing"`
}

// Timing records how long each part of a run took.
type Timing struct {
	OCRNs   int64 `json:"ocr_ns"`
	CoreNs  int64 `json:"core_ns"`
	TotalNs int64 `json:"total_ns"`
}

// BBox is the serialized form of a box's geometry.
type BBox struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
	Y1 float64 `json:"y1"`
	Y2 float64 `json:"y2"`
}

// DebugBox is one entry of ocr_results.json.
type DebugBox struct {
	BBox       BBox    `json:"bbox"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// DebugBoxes serializes a collection for the debug dump.
func DebugBoxes(c box.Collection) []DebugBox {
	out := make([]DebugBox, 0, c.Len())
	for _, b := range c.Boxes() {
		out = append(out, DebugBox{
			BBox:       BBox{X1: b.X1, X2: b.X2, Y1: b.Y1, Y2: b.Y2},
			Text:       b.Text,
			Confidence: b.Confidence,
		})
	}
	return out
}
