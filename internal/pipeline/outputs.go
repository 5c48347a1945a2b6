package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/feedocr/internal/render"
)

// Output file names inside a run's output directory.
const (
	ParsedDataFile       = "parsed_data.json"
	OCRResultsFile       = "ocr_results.json"
	CombinedImage        = "combined.png"
	CombinedBoxesImage   = "combined_with_boxes.png"
	CombinedRegionsImage = "combined_shaded.png"
)

// OutputOptions controls WriteOutputs.
type OutputOptions struct {
	Annotate bool
	Style    render.Style
}

// DefaultOutputOptions writes annotated images in the default style.
func DefaultOutputOptions() OutputOptions {
	return OutputOptions{Annotate: true, Style: render.DefaultStyle()}
}

// WriteOutputs stores the parsed document, the debug dump and, when
// requested and the screenshots are readable, the annotated images in dir.
// It returns the paths written.
func WriteOutputs(dir string, res *Result, opts OutputOptions) ([]string, error) {
	if res == nil {
		return nil, errors.New("nil result")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	parsed := filepath.Join(dir, ParsedDataFile)
	if err := writeJSON(parsed, res.Document); err != nil {
		return written, err
	}
	written = append(written, parsed)

	debug := filepath.Join(dir, OCRResultsFile)
	if err := writeJSON(debug, DebugBoxes(res.Deduped)); err != nil {
		return written, err
	}
	written = append(written, debug)

	if !opts.Annotate {
		return written, nil
	}
	frames, err := loadFrames(res)
	if err != nil {
		return written, err
	}
	combined, err := render.Combined(frames, res.Offsets)
	if err != nil {
		return written, fmt.Errorf("combine screenshots: %w", err)
	}

	images := []struct {
		name string
		img  image.Image
	}{
		{CombinedImage, combined},
		{CombinedBoxesImage, render.WithBoxes(combined, res.Deduped, opts.Style)},
		{CombinedRegionsImage, render.Regions(combined, res.Regions, opts.Style)},
	}
	for _, it := range images {
		path := filepath.Join(dir, it.name)
		if err := render.Save(it.img, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func loadFrames(res *Result) ([]image.Image, error) {
	frames := make([]image.Image, len(res.Images))
	for i, ir := range res.Images {
		var (
			img image.Image
			err error
		)
		switch {
		case len(ir.Source.Data) > 0:
			img, err = render.Decode(ir.Source.Data)
		case ir.Source.Path != "":
			img, err = render.Open(ir.Source.Path)
		default:
			return nil, fmt.Errorf("image %d has no source to annotate", i)
		}
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		frames[i] = img
	}
	return frames, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
