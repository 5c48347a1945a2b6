package ocr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/MeKo-Tech/feedocr/internal/box"
	"golang.org/x/text/unicode/norm"
)

// Viewport is the content area of a screenshot. Detections not fully inside
// it belong to the browser or feed chrome and are dropped.
type Viewport struct {
	X1      float64 `json:"x1"`
	X2      float64 `json:"x2"`
	Y1      float64 `json:"y1"`
	Y2      float64 `json:"y2"`
	Enabled bool    `json:"enabled"`
}

// DefaultViewport is the post column of a desktop feed screenshot.
func DefaultViewport() Viewport {
	return Viewport{X1: 280, X2: 1020, Y1: 90, Y2: 580, Enabled: true}
}

// ConvertOptions controls how detections become boxes.
type ConvertOptions struct {
	Viewport      Viewport
	MinConfidence float64
}

// DefaultConvertOptions applies the default viewport and keeps every
// confidence. Engines report confidence on different scales, so a floor is
// opt-in.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{Viewport: DefaultViewport()}
}

// CleanText normalizes OCR text to NFC, strips zero-width and control
// characters and trims surrounding whitespace. Inner spacing is kept.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ToCollection converts the detections of one image into a collection in
// detection order. Empty text, low confidence and boxes outside the viewport
// are skipped; malformed geometry or confidence fails the whole image.
func ToCollection(dets []Detection, opts ConvertOptions) (box.Collection, error) {
	boxes := make([]box.Box, 0, len(dets))
	for i, d := range dets {
		text := CleanText(d.Text)
		if text == "" {
			continue
		}
		b, err := box.FromQuad(d.Quad, text, d.Confidence)
		if err != nil {
			return box.Collection{}, fmt.Errorf("detection %d: %w", i, err)
		}
		if b.Confidence < opts.MinConfidence {
			continue
		}
		boxes = append(boxes, b)
	}

	c, err := box.NewCollection(boxes...)
	if err != nil {
		return box.Collection{}, err
	}
	if !opts.Viewport.Enabled {
		return c, nil
	}
	vp := opts.Viewport
	return c.FilterByRegion(&box.Range{Min: vp.X1, Max: vp.X2}, &box.Range{Min: vp.Y1, Max: vp.Y2}), nil
}
