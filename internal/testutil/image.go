package testutil

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Line is one text fragment of a feed page, placed by its top-left corner
// in page coordinates.
type Line struct {
	Text string
	X, Y int
}

// Bounds returns the pixel box basicfont gives the line.
func (l Line) Bounds() image.Rectangle {
	face := basicfont.Face7x13
	w := utf8.RuneCountInString(l.Text) * face.Advance
	return image.Rect(l.X, l.Y, l.X+w, l.Y+face.Height)
}

// FeedPage is the full scrollable height of one post and its comments.
type FeedPage struct {
	Width, Height int
	Lines         []Line
}

// Render draws the page in black on white.
func (p FeedPage) Render() *image.NRGBA {
	img := imaging.New(p.Width, p.Height, color.White)
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	for _, l := range p.Lines {
		d.Dot = fixed.P(l.X, l.Y+face.Ascent)
		d.DrawString(l.Text)
	}
	return img
}

// Detections returns what a perfect OCR engine would report for the frame
// scrolled to scrollY with the given height: every line fully inside the
// frame, in frame coordinates.
func (p FeedPage) Detections(scrollY, frameHeight int) []ocr.Detection {
	frame := image.Rect(0, scrollY, p.Width, scrollY+frameHeight)
	dets := []ocr.Detection{}
	for _, l := range p.Lines {
		r := l.Bounds()
		if !r.In(frame) {
			continue
		}
		r = r.Sub(image.Pt(0, scrollY))
		dets = append(dets, ocr.Detection{
			Quad:       ocr.RectQuad(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)),
			Text:       l.Text,
			Confidence: 0.95,
		})
	}
	return dets
}

// WriteSequence writes the frames at the given scroll positions into dir as
// 0.png, 1.png, ... together with their 0.json, 1.json sidecar detections.
// It returns the image paths in order.
func WriteSequence(t *testing.T, dir string, page FeedPage, scrolls []int, frameHeight int) []string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	full := page.Render()
	paths := make([]string, len(scrolls))
	for i, y := range scrolls {
		frame := imaging.Crop(full, image.Rect(0, y, page.Width, y+frameHeight))
		paths[i] = filepath.Join(dir, fmt.Sprintf("%d.png", i))
		require.NoError(t, imaging.Save(frame, paths[i]), "Failed to save frame %d", i)
		WriteJSON(t, filepath.Join(dir, fmt.Sprintf("%d.json", i)), page.Detections(y, frameHeight))
	}
	return paths
}
