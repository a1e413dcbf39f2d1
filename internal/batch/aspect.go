// Package batch groups text-line crops for batched inference and collects
// input image files for the command line.
package batch

import (
	"image"
	"slices"
)

// Group is one inference batch. Indices refer to the caller's crop slice,
// ordered by ascending width/height ratio; Ratios holds the matching ratios.
type Group struct {
	Indices []int
	Ratios  []float64
}

// MaxRatio returns the widest ratio in the group, but never less than floor.
func (g Group) MaxRatio(floor float64) float64 {
	m := floor
	for _, r := range g.Ratios {
		m = max(m, r)
	}
	return m
}

// Ratio returns width/height of a crop, or 0 for an empty one.
func Ratio(size image.Point) float64 {
	if size.X <= 0 || size.Y <= 0 {
		return 0
	}
	return float64(size.X) / float64(size.Y)
}

// ByAspectRatio sorts crops by width/height ascending (stable on ties) and
// cuts the order into groups of at most size crops. Similar shapes share a
// batch so right padding stays small.
func ByAspectRatio(sizes []image.Point, size int) []Group {
	if len(sizes) == 0 {
		return nil
	}
	size = max(size, 1)

	order := make([]int, len(sizes))
	ratios := make([]float64, len(sizes))
	for i, s := range sizes {
		order[i] = i
		ratios[i] = Ratio(s)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case ratios[a] < ratios[b]:
			return -1
		case ratios[a] > ratios[b]:
			return 1
		}
		return 0
	})

	groups := make([]Group, 0, (len(order)+size-1)/size)
	for beg := 0; beg < len(order); beg += size {
		end := min(beg+size, len(order))
		g := Group{Indices: slices.Clone(order[beg:end]), Ratios: make([]float64, end-beg)}
		for k, idx := range g.Indices {
			g.Ratios[k] = ratios[idx]
		}
		groups = append(groups, g)
	}
	return groups
}

// Sizes returns the bounds size of every image.
func Sizes(imgs []image.Image) []image.Point {
	out := make([]image.Point, len(imgs))
	for i, img := range imgs {
		if img != nil {
			out[i] = img.Bounds().Size()
		}
	}
	return out
}
