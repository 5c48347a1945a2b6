// Package box provides the bounding-box model shared by every stage of the
// feed parser: single OCR detections and immutable ordered collections of them.
package box

import (
	"fmt"
	"math"
	"sync/atomic"
)

// DefaultRowTolerance is the vertical slack (in pixels) used to group boxes into rows.
const DefaultRowTolerance = 10.0

// nextKey hands out ingestion keys. Zero is reserved for "not yet ingested".
var nextKey atomic.Uint64

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Box is an axis-aligned text detection in pixel coordinates.
// Boxes are values; transforms return new Boxes and keep the ingestion key.
type Box struct {
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
	Text       string
	Confidence float64

	key uint64
}

// New validates the coordinates and confidence and returns an ingested Box.
func New(x1, y1, x2, y2 float64, text string, confidence float64) (Box, error) {
	b := Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Text: text, Confidence: confidence}
	if err := b.Validate(); err != nil {
		return Box{}, err
	}
	b.key = nextKey.Add(1)
	return b, nil
}

// FromQuad reduces a quadrilateral to its axis-aligned bounding box.
func FromQuad(quad [4]Point, text string, confidence float64) (Box, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range quad {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return New(minX, minY, maxX, maxY, text, confidence)
}

// Validate reports whether the box satisfies the coordinate and confidence contract.
func (b Box) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{{"x1", b.X1}, {"y1", b.Y1}, {"x2", b.X2}, {"y2", b.Y2}} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return &ValidationError{Field: c.name, Value: c.v, Err: ErrInvalidBox}
		}
	}
	if b.X2 < b.X1 {
		return &ValidationError{Field: "x2", Value: b.X2, Err: fmt.Errorf("%w: x2 < x1 (%g < %g)", ErrInvalidBox, b.X2, b.X1)}
	}
	if b.Y2 < b.Y1 {
		return &ValidationError{Field: "y2", Value: b.Y2, Err: fmt.Errorf("%w: y2 < y1 (%g < %g)", ErrInvalidBox, b.Y2, b.Y1)}
	}
	if math.IsNaN(b.Confidence) || math.IsInf(b.Confidence, 0) || b.Confidence < 0 || b.Confidence > 1 {
		return &ValidationError{Field: "confidence", Value: b.Confidence, Err: ErrInvalidConfidence}
	}
	return nil
}

// Key returns the ingestion key, or 0 for a box that was never ingested.
func (b Box) Key() uint64 { return b.key }

// Width returns the box width.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// YMid returns the vertical midpoint.
func (b Box) YMid() float64 { return (b.Y1 + b.Y2) / 2 }

// Offset returns a copy shifted vertically by dy.
func (b Box) Offset(dy float64) Box {
	b.Y1 += dy
	b.Y2 += dy
	return b
}

// Intersection returns the overlapping area of two boxes.
func (b Box) Intersection(o Box) float64 {
	w := math.Min(b.X2, o.X2) - math.Max(b.X1, o.X1)
	h := math.Min(b.Y2, o.Y2) - math.Max(b.Y1, o.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b Box) String() string {
	return fmt.Sprintf("%q [%.1f,%.1f %.1f,%.1f] %.2f", b.Text, b.X1, b.Y1, b.X2, b.Y2, b.Confidence)
}
