// Package render draws the diagnostic images of a sequence run: the
// screenshots stacked at their scroll offsets, the deduplicated boxes and the
// comment regions.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style controls colors and stroke widths.
type Style struct {
	BoxColor        color.Color
	RegionColor     color.Color
	BoxThickness    int
	RegionThickness int
	Labels          bool
}

// DefaultStyle draws red 2px boxes with labels and blue 3px regions.
func DefaultStyle() Style {
	return Style{
		BoxColor:        color.NRGBA{R: 255, A: 255},
		RegionColor:     color.NRGBA{B: 255, A: 255},
		BoxThickness:    2,
		RegionThickness: 3,
		Labels:          true,
	}
}

var namedColors = map[string]color.NRGBA{
	"red":   {R: 255, A: 255},
	"green": {G: 128, A: 255},
	"blue":  {B: 255, A: 255},
	"black": {A: 255},
	"white": {R: 255, G: 255, B: 255, A: 255},
}

// ParseColor accepts a color name (red, green, blue, black, white) or a hex
// triplet such as "#ff8800".
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil //nolint:gosec // G115: masked by shifts
}

// Combined stacks frames on a white canvas, frame i pasted at offsets[i].
// The canvas is as wide as the widest frame and tall enough for the lowest.
func Combined(frames []image.Image, offsets []float64) (*image.NRGBA, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to combine")
	}
	if len(frames) != len(offsets) {
		return nil, fmt.Errorf("got %d frames but %d offsets", len(frames), len(offsets))
	}

	width, height := 0, 0
	for i, f := range frames {
		if f == nil {
			return nil, fmt.Errorf("frame %d is nil", i)
		}
		b := f.Bounds()
		width = max(width, b.Dx())
		height = max(height, int(math.Ceil(offsets[i]))+b.Dy())
	}
	if height <= 0 {
		return nil, errors.New("frames lie entirely above the canvas")
	}

	canvas := imaging.New(width, height, color.White)
	for i, f := range frames {
		canvas = imaging.Paste(canvas, f, image.Pt(0, int(math.Round(offsets[i]))))
	}
	return canvas, nil
}

// WithBoxes returns a copy of base with every box outlined and labeled.
func WithBoxes(base image.Image, c box.Collection, style Style) *image.NRGBA {
	dst := imaging.Clone(base)
	face := basicfont.Face7x13
	for _, b := range c.Boxes() {
		DrawRect(dst, rect(b.X1, b.Y1, b.X2, b.Y2), style.BoxColor, style.BoxThickness)
		if !style.Labels {
			continue
		}
		// Baseline sits just above the box, but never above the canvas.
		baseline := max(int(b.Y1)-4, face.Ascent)
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(style.BoxColor),
			Face: face,
			Dot:  fixed.P(int(b.X1), baseline),
		}
		d.DrawString(b.Text)
	}
	return dst
}

// Regions returns a copy of base with each comment region outlined across
// the full canvas width.
func Regions(base image.Image, regions []layout.Region, style Style) *image.NRGBA {
	dst := imaging.Clone(base)
	w := float64(dst.Bounds().Dx())
	for _, r := range regions {
		DrawRect(dst, rect(0, r.StartY, w, r.EndY), style.RegionColor, style.RegionThickness)
	}
	return dst
}

func rect(x1, y1, x2, y2 float64) image.Rectangle {
	return image.Rect(int(math.Floor(x1)), int(math.Floor(y1)), int(math.Ceil(x2)), int(math.Ceil(y2)))
}

// DrawRect draws an axis-aligned rectangle outline into dst, clipped to its
// bounds.
func DrawRect(dst draw.Image, r image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	for t := range thickness {
		top, bottom := r.Min.Y+t, r.Max.Y-1-t
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x, top, col)
			dst.Set(x, bottom, col)
		}
		left, right := r.Min.X+t, r.Max.X-1-t
		for y := r.Min.Y; y < r.Max.Y; y++ {
			dst.Set(left, y, col)
			dst.Set(right, y, col)
		}
	}
}
