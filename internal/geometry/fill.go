package geometry

import (
	"image"
	"math"
	"sort"
)

// FillPolygon rasterizes a closed polygon with integer vertices into a
// w×h row-major mask. Pixels whose centers lie inside the polygon or on its
// boundary are set to true. Vertices outside the mask are allowed; only the
// in-bounds part is written.
func FillPolygon(mask []bool, w, h int, pts []image.Point) {
	if len(pts) == 0 || w <= 0 || h <= 0 || len(mask) < w*h {
		return
	}

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	minY = max(minY, 0)
	maxY = min(maxY, h-1)

	xs := make([]float64, 0, 8)
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i := range pts {
			a := pts[i]
			b := pts[(i+1)%len(pts)]
			if a.Y == b.Y {
				continue
			}
			lo, hi := a, b
			if lo.Y > hi.Y {
				lo, hi = hi, lo
			}
			// half-open span so shared vertices are counted once
			if y < lo.Y || y >= hi.Y {
				continue
			}
			t := float64(y-lo.Y) / float64(hi.Y-lo.Y)
			xs = append(xs, float64(lo.X)+t*float64(hi.X-lo.X))
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i])), 0)
			x1 := min(int(math.Floor(xs[i+1])), w-1)
			for x := x0; x <= x1; x++ {
				mask[y*w+x] = true
			}
		}
	}

	// boundary pixels, which the half-open scan misses on bottom rows and
	// horizontal edges
	for i := range pts {
		rasterLine(mask, w, h, pts[i], pts[(i+1)%len(pts)])
	}
}

// rasterLine marks the pixels of segment ab using Bresenham stepping.
func rasterLine(mask []bool, w, h int, a, b image.Point) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	e := dx + dy
	for {
		if x0 >= 0 && y0 >= 0 && x0 < w && y0 < h {
			mask[y0*w+x0] = true
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
