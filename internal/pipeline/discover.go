package pipeline

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ErrNoImages is returned when a directory holds no numbered screenshots.
var ErrNoImages = errors.New("no numbered screenshots found")

// SupportedImageExtensions lists the screenshot formats a sequence may use.
var SupportedImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// Sequence is the ordered screenshots of one scrolled post.
type Sequence struct {
	Name   string   `json:"name"`
	Dir    string   `json:"dir"`
	Images []string `json:"images"`
}

// DiscoverSequence lists the screenshots of dir named by frame index
// (0.png, 1.png, ...) in numeric order. Files with other names are ignored.
func DiscoverSequence(dir string) (Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Sequence{}, fmt.Errorf("read sequence dir: %w", err)
	}

	type frame struct {
		index int
		name  string
	}
	var frames []frame
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || !IsSupportedImage(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idx, err := strconv.Atoi(stem)
		if err != nil || idx < 0 {
			continue
		}
		if prev, dup := seen[idx]; dup {
			return Sequence{}, fmt.Errorf("frame %d appears twice: %s and %s", idx, prev, e.Name())
		}
		seen[idx] = e.Name()
		frames = append(frames, frame{index: idx, name: e.Name()})
	}
	if len(frames) == 0 {
		return Sequence{}, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	slices.SortFunc(frames, func(a, b frame) int { return cmp.Compare(a.index, b.index) })
	seq := Sequence{Name: filepath.Base(filepath.Clean(dir)), Dir: dir, Images: make([]string, len(frames))}
	for i, f := range frames {
		seq.Images[i] = filepath.Join(dir, f.name)
	}
	return seq, nil
}
