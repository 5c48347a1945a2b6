// Package tesseract registers the local Tesseract engine under the name
// "tesseract". Import it for its side effect.
package tesseract

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

// Name is the registry name of the engine.
const Name = "tesseract"

// DefaultLanguages are the traineddata sets used when none are configured.
var DefaultLanguages = []string{"eng", "nld"}

func init() {
	ocr.Register(Name, func(_ context.Context, cfg ocr.Config) (ocr.Engine, error) {
		return New(cfg.Languages, cfg.Level)
	})
}

// Engine runs Tesseract through gosseract. A client is not safe for
// concurrent use, so every call gets its own.
type Engine struct {
	languages []string
	level     gosseract.PageIteratorLevel
}

// New returns an engine for the languages at the given level. Line level is
// the default: markers such as "12 comments" must arrive as one box.
func New(languages []string, level ocr.Level) (*Engine, error) {
	ril, err := iteratorLevel(level)
	if err != nil {
		return nil, err
	}
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Engine{languages: languages, level: ril}, nil
}

func iteratorLevel(level ocr.Level) (gosseract.PageIteratorLevel, error) {
	switch level {
	case ocr.LevelLine, "":
		return gosseract.RIL_TEXTLINE, nil
	case ocr.LevelWord:
		return gosseract.RIL_WORD, nil
	case ocr.LevelParagraph:
		return gosseract.RIL_PARA, nil
	default:
		return 0, fmt.Errorf("unsupported tesseract level %q", level)
	}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Close() error { return nil }

func (e *Engine) Recognize(ctx context.Context, img ocr.Image) ([]ocr.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(e.level)
	if err != nil {
		return nil, fmt.Errorf("get bounding boxes: %w", err)
	}
	return toDetections(boxes), nil
}

// toDetections rescales Tesseract's 0-100 confidence to [0,1]. Tesseract
// reports a negative confidence for blocks it recognized no text in; those
// are dropped.
func toDetections(boxes []gosseract.BoundingBox) []ocr.Detection {
	dets := make([]ocr.Detection, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence < 0 {
			continue
		}
		conf := b.Confidence / 100
		if conf > 1 {
			conf = 1
		}
		r := b.Box
		dets = append(dets, ocr.Detection{
			Quad:       ocr.RectQuad(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)),
			Text:       b.Word,
			Confidence: conf,
		})
	}
	return dets
}
