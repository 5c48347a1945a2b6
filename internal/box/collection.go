package box

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Collection is an immutable ordered sequence of boxes.
// Every operation returns a new Collection and leaves the receiver untouched.
type Collection struct {
	boxes []Box
}

// Range is an inclusive coordinate interval.
type Range struct {
	Min float64
	Max float64
}

// NewCollection validates the boxes and ingests any that have no key yet.
func NewCollection(boxes ...Box) (Collection, error) {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			return Collection{}, fmt.Errorf("box %d: %w", i, err)
		}
		if b.key == 0 {
			b.key = nextKey.Add(1)
		}
		out[i] = b
	}
	return Collection{boxes: out}, nil
}

// MustCollection is NewCollection for literals known to be valid; it panics otherwise.
func MustCollection(boxes ...Box) Collection {
	c, err := NewCollection(boxes...)
	if err != nil {
		panic(err)
	}
	return c
}

// wrap takes ownership of boxes without copying.
func wrap(boxes []Box) Collection {
	return Collection{boxes: boxes}
}

// Concat joins collections in argument order.
func Concat(cs ...Collection) Collection {
	n := 0
	for _, c := range cs {
		n += len(c.boxes)
	}
	out := make([]Box, 0, n)
	for _, c := range cs {
		out = append(out, c.boxes...)
	}
	return wrap(out)
}

// Len returns the number of boxes.
func (c Collection) Len() int { return len(c.boxes) }

// Empty reports whether the collection holds no boxes.
func (c Collection) Empty() bool { return len(c.boxes) == 0 }

// At returns the i-th box.
func (c Collection) At(i int) Box { return c.boxes[i] }

// Boxes returns a copy of the underlying boxes.
func (c Collection) Boxes() []Box { return slices.Clone(c.boxes) }

// Texts returns the box texts in collection order.
func (c Collection) Texts() []string {
	out := make([]string, len(c.boxes))
	for i, b := range c.boxes {
		out[i] = b.Text
	}
	return out
}

// Filter keeps the boxes for which keep returns true, preserving order.
func (c Collection) Filter(keep func(Box) bool) Collection {
	out := make([]Box, 0, len(c.boxes))
	for _, b := range c.boxes {
		if keep(b) {
			out = append(out, b)
		}
	}
	return wrap(out)
}

// ApplyOffset shifts every box vertically by dy.
func (c Collection) ApplyOffset(dy float64) Collection {
	out := make([]Box, len(c.boxes))
	for i, b := range c.boxes {
		out[i] = b.Offset(dy)
	}
	return wrap(out)
}

// FilterByRegion keeps boxes fully inside the given ranges. A nil range is unbounded.
func (c Collection) FilterByRegion(xr, yr *Range) Collection {
	return c.Filter(func(b Box) bool {
		if xr != nil && (b.X1 < xr.Min || b.X2 > xr.Max) {
			return false
		}
		if yr != nil && (b.Y1 < yr.Min || b.Y2 > yr.Max) {
			return false
		}
		return true
	})
}

// SliceY returns the boxes lying vertically within [start, end].
func (c Collection) SliceY(start, end float64) Collection {
	return c.FilterByRegion(nil, &Range{Min: start, Max: end})
}

// Above returns boxes whose top edge is at least margin pixels above y.
func (c Collection) Above(y, margin float64) Collection {
	limit := y - margin
	return c.Filter(func(b Box) bool { return b.Y1 <= limit })
}

// Without returns the boxes whose keys are not present in other.
func (c Collection) Without(other Collection) Collection {
	drop := make(map[uint64]struct{}, len(other.boxes))
	for _, b := range other.boxes {
		drop[b.key] = struct{}{}
	}
	return c.Filter(func(b Box) bool {
		_, ok := drop[b.key]
		return !ok
	})
}

// SortByX returns the boxes stably ordered by X1.
func (c Collection) SortByX() Collection {
	out := slices.Clone(c.boxes)
	slices.SortStableFunc(out, func(a, b Box) int { return compareFloat(a.X1, b.X1) })
	return wrap(out)
}

// SortByY returns the boxes stably ordered by Y1.
func (c Collection) SortByY() Collection {
	out := slices.Clone(c.boxes)
	slices.SortStableFunc(out, func(a, b Box) int { return compareFloat(a.Y1, b.Y1) })
	return wrap(out)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// rowTolerance maps negative and NaN tolerances to zero so a row always
// contains at least the box with the extreme Y1.
func rowTolerance(tol float64) float64 {
	if math.IsNaN(tol) || tol < 0 {
		return 0
	}
	return tol
}

// minY1 and maxY1 must only be called on non-empty collections.
func (c Collection) minY1() float64 {
	m := math.Inf(1)
	for _, b := range c.boxes {
		m = math.Min(m, b.Y1)
	}
	return m
}

func (c Collection) maxY1() float64 {
	m := math.Inf(-1)
	for _, b := range c.boxes {
		m = math.Max(m, b.Y1)
	}
	return m
}

// TopRow returns boxes whose Y1 is within tol of the smallest Y1.
func (c Collection) TopRow(tol float64) Collection {
	if c.Empty() {
		return Collection{}
	}
	limit := c.minY1() + rowTolerance(tol)
	return c.Filter(func(b Box) bool { return b.Y1 <= limit })
}

// BottomRow returns boxes whose Y1 is within tol of the largest Y1.
func (c Collection) BottomRow(tol float64) Collection {
	if c.Empty() {
		return Collection{}
	}
	limit := c.maxY1() - rowTolerance(tol)
	return c.Filter(func(b Box) bool { return b.Y1 >= limit })
}

// MiddleRows returns the boxes selected by neither TopRow nor BottomRow.
func (c Collection) MiddleRows(tol float64) Collection {
	if c.Empty() {
		return Collection{}
	}
	tol = rowTolerance(tol)
	top := c.minY1() + tol
	bottom := c.maxY1() - tol
	return c.Filter(func(b Box) bool { return b.Y1 > top && b.Y1 < bottom })
}

// ExcludeTextMatching drops boxes whose text contains any of the substrings.
func (c Collection) ExcludeTextMatching(substrings []string, caseSensitive bool) Collection {
	if len(substrings) == 0 {
		return c
	}
	norm := func(s string) string { return s }
	if !caseSensitive {
		folder := cases.Fold()
		norm = folder.String
	}
	needles := make([]string, 0, len(substrings))
	for _, s := range substrings {
		if s != "" {
			needles = append(needles, norm(s))
		}
	}
	return c.Filter(func(b Box) bool {
		text := norm(b.Text)
		for _, n := range needles {
			if strings.Contains(text, n) {
				return false
			}
		}
		return true
	})
}

// FindFirstMatchingPattern compiles pattern and returns the first box whose
// trimmed text matches it in full.
func (c Collection) FindFirstMatchingPattern(pattern string) (Box, bool, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return Box{}, false, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}
	b, ok := c.FindFirstMatching(re)
	return b, ok, nil
}

// FindFirstMatching returns the first box whose trimmed text fully matches re.
func (c Collection) FindFirstMatching(re *regexp.Regexp) (Box, bool) {
	for _, b := range c.boxes {
		text := strings.TrimSpace(b.Text)
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 && loc[1] == len(text) {
			return b, true
		}
	}
	return Box{}, false
}

// FindAllContaining returns the boxes whose case-folded text contains substr.
func (c Collection) FindAllContaining(substr string) Collection {
	folder := cases.Fold()
	needle := folder.String(substr)
	return c.Filter(func(b Box) bool {
		return strings.Contains(folder.String(b.Text), needle)
	})
}

// FindFirstContaining returns the first box whose case-folded text contains substr.
func (c Collection) FindFirstContaining(substr string) (Box, bool) {
	found := c.FindAllContaining(substr)
	if found.Empty() {
		return Box{}, false
	}
	return found.boxes[0], true
}

// Extent returns the smallest box enclosing the whole collection.
func (c Collection) Extent() (Box, bool) {
	if c.Empty() {
		return Box{}, false
	}
	ext := Box{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, b := range c.boxes {
		ext.X1 = math.Min(ext.X1, b.X1)
		ext.Y1 = math.Min(ext.Y1, b.Y1)
		ext.X2 = math.Max(ext.X2, b.X2)
		ext.Y2 = math.Max(ext.Y2, b.Y2)
	}
	return ext, true
}
