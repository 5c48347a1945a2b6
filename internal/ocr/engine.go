// Package ocr defines the OCR collaborator of the feed pipeline: engines
// that turn one screenshot into text detections, and the conversion of those
// detections into box collections.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/MeKo-Tech/feedocr/internal/box"
)

// ErrUnknownEngine is returned by New for an engine name nobody registered.
var ErrUnknownEngine = errors.New("unknown OCR engine")

// Image is one screenshot handed to an engine. Path may be empty for
// in-memory uploads; Data may be empty when the engine can read Path.
type Image struct {
	Path string
	Data []byte
}

// Bytes returns the encoded image, reading Path when Data is empty.
func (img Image) Bytes() ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.Path == "" {
		return nil, errors.New("image has neither data nor path")
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// Quad is a detection quadrilateral; it serializes as [[x,y],[x,y],[x,y],[x,y]].
type Quad [4]box.Point

// MarshalJSON implements json.Marshaler.
func (q Quad) MarshalJSON() ([]byte, error) {
	pts := make([][2]float64, len(q))
	for i, p := range q {
		pts[i] = [2]float64{p.X, p.Y}
	}
	return json.Marshal(pts)
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quad) UnmarshalJSON(data []byte) error {
	var pts [][]float64
	if err := json.Unmarshal(data, &pts); err != nil {
		return err
	}
	if len(pts) != len(q) {
		return fmt.Errorf("quad needs 4 points, got %d", len(pts))
	}
	for i, p := range pts {
		if len(p) != 2 {
			return fmt.Errorf("quad point %d needs 2 coordinates, got %d", i, len(p))
		}
		q[i] = box.Point{X: p[0], Y: p[1]}
	}
	return nil
}

// RectQuad builds the quad of an axis-aligned rectangle, clockwise from the
// top-left corner.
func RectQuad(x1, y1, x2, y2 float64) Quad {
	return Quad{{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2}}
}

// Detection is one recognized text fragment in image pixel space.
type Detection struct {
	Quad       Quad    `json:"quad"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Engine recognizes text in screenshots. Implementations must be safe for
// concurrent use.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img Image) ([]Detection, error)
	Close() error
}

// Level selects the granularity of engine output.
type Level string

const (
	LevelWord      Level = "word"
	LevelLine      Level = "line"
	LevelParagraph Level = "paragraph"
)

// Config selects and tunes an engine.
type Config struct {
	Engine          string
	Languages       []string
	Level           Level
	CredentialsFile string
	// DetectionsDir points the json engine at a directory of sidecar files;
	// empty means next to each image.
	DetectionsDir string
}

// Factory builds an engine from its configuration.
type Factory func(ctx context.Context, cfg Config) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available to New. It panics on a duplicate name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	if _, dup := registry[name]; dup {
		panic("ocr: Register called twice for engine " + name)
	}
	registry[name] = f
}

// Engines lists the registered engine names in sorted order.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// New builds the engine named in cfg.
func New(ctx context.Context, cfg Config) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(cfg.Engine)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownEngine, cfg.Engine, strings.Join(Engines(), ", "))
	}
	e, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", cfg.Engine, err)
	}
	return e, nil
}
