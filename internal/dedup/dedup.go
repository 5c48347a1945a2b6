// Package dedup removes detections of the same text that appear more than
// once after screenshots have been merged into one coordinate space.
package dedup

import "github.com/MeKo-Tech/feedocr/internal/box"

// DefaultMinRatio is the coverage above which the smaller box is treated as a duplicate.
const DefaultMinRatio = 0.5

// Coverage returns the intersection area of a and b divided by the smaller area.
func Coverage(a, b box.Box) float64 {
	smaller := min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}
	return a.Intersection(b) / smaller
}

// RemoveDuplicates sorts the collection by Y1 and greedily drops the smaller
// box of every pair whose coverage exceeds minRatio. When both boxes have the
// same area the later one in Y1 order is dropped. The result stays in Y1 order.
func RemoveDuplicates(c box.Collection, minRatio float64) box.Collection {
	sorted := c.SortByY()
	n := sorted.Len()
	kept := make([]bool, n)
	for i := range kept {
		kept[i] = true
	}

	for i := range n {
		if !kept[i] {
			continue
		}
		bi := sorted.At(i)
		for j := i + 1; j < n; j++ {
			if !kept[j] {
				continue
			}
			bj := sorted.At(j)
			if bj.Y1 >= bi.Y2 {
				break
			}
			if bj.Y2 <= bi.Y1 {
				continue
			}
			if Coverage(bi, bj) <= minRatio {
				continue
			}
			if bi.Area() < bj.Area() {
				kept[i] = false
				break
			}
			kept[j] = false
		}
	}

	idx := 0
	return sorted.Filter(func(box.Box) bool {
		keep := kept[idx]
		idx++
		return keep
	})
}
