package detector

import (
	"sort"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

// orderClockwise sorts by x, then orders each of the left and right pairs
// top to bottom. Ties keep their input order.
func orderClockwise(q geometry.Quad) geometry.Quad {
	p := q
	sort.SliceStable(p[:], func(i, j int) bool { return p[i].X < p[j].X })
	if p[1].Y < p[0].Y {
		p[0], p[1] = p[1], p[0]
	}
	if p[3].Y < p[2].Y {
		p[2], p[3] = p[3], p[2]
	}
	return geometry.Quad{p[0], p[2], p[3], p[1]}
}

// FilterRegions reorders each quad clockwise, clips it to the w×h image
// and drops regions whose top or left edge is 3 pixels or shorter.
func FilterRegions(regions []ScoredRegion, w, h int) []ScoredRegion {
	out := make([]ScoredRegion, 0, len(regions))
	for _, r := range regions {
		q := orderClockwise(r.Quad).Clamp(float64(w-1), float64(h-1))
		if geometry.Distance(q[0], q[1]) <= 3 || geometry.Distance(q[0], q[3]) <= 3 {
			continue
		}
		out = append(out, ScoredRegion{Quad: q, Score: r.Score})
	}
	return out
}

// SortRegions returns the regions in reading order: top to bottom, then
// left to right for regions whose tops are within 10 pixels of each other.
func SortRegions(regions []ScoredRegion) []ScoredRegion {
	out := make([]ScoredRegion, len(regions))
	copy(out, regions)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Quad[0], out[j].Quad[0]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	for i := 0; i+1 < len(out); i++ {
		for j := i; j >= 0; j-- {
			a, b := out[j].Quad[0], out[j+1].Quad[0]
			if abs(b.Y-a.Y) < 10 && b.X < a.X {
				out[j], out[j+1] = out[j+1], out[j]
			} else {
				break
			}
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
