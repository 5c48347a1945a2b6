// Package vision registers the Google Cloud Vision engine under the name
// "vision". Import it for its side effect.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"google.golang.org/api/option"
)

// Name is the registry name of the engine.
const Name = "vision"

func init() {
	ocr.Register(Name, func(ctx context.Context, cfg ocr.Config) (ocr.Engine, error) {
		return New(ctx, cfg)
	})
}

// Engine sends screenshots to DOCUMENT_TEXT_DETECTION.
type Engine struct {
	client    *visionapi.ImageAnnotatorClient
	languages []string
	level     ocr.Level
}

// New dials the Vision API. Without a credentials file the application
// default credentials are used.
func New(ctx context.Context, cfg ocr.Config) (*Engine, error) {
	level := cfg.Level
	switch level {
	case "":
		level = ocr.LevelParagraph
	case ocr.LevelWord, ocr.LevelParagraph:
	default:
		return nil, fmt.Errorf("unsupported vision level %q", level)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := visionapi.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create image annotator client: %w", err)
	}
	return &Engine{client: client, languages: cfg.Languages, level: level}, nil
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Close() error { return e.client.Close() }

func (e *Engine) Recognize(ctx context.Context, img ocr.Image) ([]ocr.Detection, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: data},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: e.languages},
		}},
	}
	resp, err := e.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("annotate image: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, errors.New("annotate image: empty response")
	}
	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return nil, fmt.Errorf("annotate image: %s", st.GetMessage())
	}
	return fromAnnotation(r.GetFullTextAnnotation(), e.level), nil
}

// fromAnnotation flattens the page/block/paragraph tree into detections.
func fromAnnotation(ann *visionpb.TextAnnotation, level ocr.Level) []ocr.Detection {
	dets := []ocr.Detection{}
	for _, page := range ann.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				if level == ocr.LevelWord {
					for _, w := range para.GetWords() {
						dets = append(dets, detection(w.GetBoundingBox(), wordText(w), w.GetConfidence()))
					}
					continue
				}
				words := make([]string, 0, len(para.GetWords()))
				for _, w := range para.GetWords() {
					words = append(words, wordText(w))
				}
				dets = append(dets, detection(para.GetBoundingBox(), strings.Join(words, " "), para.GetConfidence()))
			}
		}
	}
	return dets
}

func wordText(w *visionpb.Word) string {
	var sb strings.Builder
	for _, s := range w.GetSymbols() {
		sb.WriteString(s.GetText())
	}
	return sb.String()
}

func detection(poly *visionpb.BoundingPoly, text string, conf float32) ocr.Detection {
	var q ocr.Quad
	for i, v := range poly.GetVertices() {
		if i >= len(q) {
			break
		}
		q[i].X = float64(v.GetX())
		q[i].Y = float64(v.GetY())
	}
	return ocr.Detection{Quad: q, Text: text, Confidence: float64(conf)}
}
