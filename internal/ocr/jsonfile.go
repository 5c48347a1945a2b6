package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// JSONEngineName is the registry name of the sidecar engine.
const JSONEngineName = "json"

func init() {
	Register(JSONEngineName, func(_ context.Context, cfg Config) (Engine, error) {
		return NewJSONEngine(cfg.DetectionsDir), nil
	})
}

// JSONEngine replays detections recorded earlier: 3.png is answered from
// 3.json, either next to the image or inside a fixed directory.
type JSONEngine struct {
	dir string
}

// NewJSONEngine returns a sidecar engine. An empty dir reads next to each image.
func NewJSONEngine(dir string) *JSONEngine {
	return &JSONEngine{dir: dir}
}

func (e *JSONEngine) Name() string { return JSONEngineName }

func (e *JSONEngine) Close() error { return nil }

// SidecarPath returns the detections file answering for imagePath.
func (e *JSONEngine) SidecarPath(imagePath string) string {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	dir := e.dir
	if dir == "" {
		dir = filepath.Dir(imagePath)
	}
	return filepath.Join(dir, stem+".json")
}

func (e *JSONEngine) Recognize(ctx context.Context, img Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Path == "" {
		return nil, errors.New("json engine needs the image path to locate its detections")
	}
	path := e.SidecarPath(img.Path)
	f, err := os.Open(path) //nolint:gosec // G304: sidecar path derives from the user-provided image
	if err != nil {
		return nil, fmt.Errorf("open detections: %w", err)
	}
	defer func() { _ = f.Close() }()

	dets, err := DecodeDetections(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dets, nil
}

// DecodeDetections reads a JSON array of detections.
func DecodeDetections(r io.Reader) ([]Detection, error) {
	var dets []Detection
	if err := json.NewDecoder(r).Decode(&dets); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	if dets == nil {
		dets = []Detection{}
	}
	return dets, nil
}
