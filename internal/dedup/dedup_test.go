package dedup

import (
	"testing"

	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/stretchr/testify/assert"
)

func mk(text string, x1, y1, x2, y2 float64) box.Box {
	return box.Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Text: text, Confidence: 0.9}
}

func TestCoverage(t *testing.T) {
	assert.InDelta(t, 1.0, Coverage(mk("a", 0, 0, 100, 20), mk("b", 0, 0, 50, 20)), 1e-9)
	assert.InDelta(t, 0.5, Coverage(mk("a", 0, 0, 10, 10), mk("b", 5, 0, 15, 10)), 1e-9)
	assert.Zero(t, Coverage(mk("a", 0, 0, 10, 10), mk("flat", 0, 5, 10, 5)))
}

func TestRemoveDuplicates(t *testing.T) {
	tests := []struct {
		name     string
		boxes    []box.Box
		minRatio float64
		want     []string
	}{
		{
			name:     "nested smaller box removed",
			boxes:    []box.Box{mk("A", 0, 0, 100, 20), mk("B", 0, 0, 50, 20)},
			minRatio: DefaultMinRatio,
			want:     []string{"A"},
		},
		{
			name:     "smaller earlier box removed",
			boxes:    []box.Box{mk("small", 10, 0, 40, 20), mk("large", 0, 2, 100, 22)},
			minRatio: DefaultMinRatio,
			want:     []string{"large"},
		},
		{
			name:     "equal area drops the later box",
			boxes:    []box.Box{mk("first", 0, 0, 50, 20), mk("second", 2, 1, 52, 21)},
			minRatio: DefaultMinRatio,
			want:     []string{"first"},
		},
		{
			name:     "coverage at the threshold is kept",
			boxes:    []box.Box{mk("left", 0, 0, 10, 10), mk("right", 5, 0, 15, 10)},
			minRatio: 0.5,
			want:     []string{"left", "right"},
		},
		{
			name:     "vertically disjoint boxes kept",
			boxes:    []box.Box{mk("top", 0, 0, 50, 10), mk("bottom", 0, 10, 50, 20)},
			minRatio: DefaultMinRatio,
			want:     []string{"top", "bottom"},
		},
		{
			name:     "output is in y1 order",
			boxes:    []box.Box{mk("later", 0, 100, 50, 110), mk("earlier", 0, 0, 50, 10)},
			minRatio: DefaultMinRatio,
			want:     []string{"earlier", "later"},
		},
		{
			name:     "empty",
			boxes:    nil,
			minRatio: DefaultMinRatio,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveDuplicates(box.MustCollection(tt.boxes...), tt.minRatio)
			assert.Equal(t, tt.want, got.Texts())
		})
	}
}

func TestRemoveDuplicates_OverlappingScreenshots(t *testing.T) {
	// Two screenshots of the same comment merged after alignment: the second
	// detection is off by a pixel or two and must collapse into one.
	unified := box.MustCollection(
		mk("Jan Jansen", 300, 700, 400, 718),
		mk("Mooie foto!", 300, 720, 420, 738),
		mk("Jan Jansen", 301, 701, 401, 719),
		mk("Mooie foto!", 300, 721, 420, 739),
		mk("Piet", 300, 800, 340, 818),
	)

	got := RemoveDuplicates(unified, DefaultMinRatio)
	assert.Equal(t, []string{"Jan Jansen", "Mooie foto!", "Piet"}, got.Texts())
}
