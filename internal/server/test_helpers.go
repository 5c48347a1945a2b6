package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
)

// fixtureEngine answers Recognize with canned detections keyed by the
// image bytes, for testing uploads without a real OCR engine.
type fixtureEngine struct {
	mu       sync.Mutex
	byData   map[string][]ocr.Detection
	requests int
}

func newFixtureEngine() *fixtureEngine {
	return &fixtureEngine{byData: map[string][]ocr.Detection{}}
}

func (e *fixtureEngine) add(data []byte, dets []ocr.Detection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byData[string(data)] = dets
}

func (e *fixtureEngine) Name() string { return "fixture" }

func (e *fixtureEngine) Close() error { return nil }

func (e *fixtureEngine) Recognize(_ context.Context, img ocr.Image) ([]ocr.Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	dets, ok := e.byData[string(img.Data)]
	if !ok {
		return nil, errors.New("unknown screenshot")
	}
	return dets, nil
}

// createMultipartImagesRequest creates a multipart request uploading files
// under the "images" field in the given order.
func createMultipartImagesRequest(files [][]byte, extraFields map[string]string) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for i, data := range files {
		part, err := writer.CreateFormFile("images", strconv.Itoa(i)+".png")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
	}

	for key, value := range extraFields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/parse/images", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// encodePNG encodes an image as PNG.
func encodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
