package detector

import (
	"image"
	"math"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
)

// scoreQuad averages the probability map over the fitted quad (fast mode).
func scoreQuad(pm ProbabilityMap, q geometry.Quad) float64 {
	pts := make([]image.Point, 4)
	for i, p := range q {
		pts[i] = image.Point{X: int(p.X), Y: int(p.Y)}
	}
	return meanUnderPolygon(pm, pts, q.BoundingBox())
}

// scoreContour averages the probability map over the raw contour (slow mode).
func scoreContour(pm ProbabilityMap, contour []image.Point) float64 {
	if len(contour) == 0 {
		return 0
	}
	b := geometry.Box{
		MinX: float64(contour[0].X), MaxX: float64(contour[0].X),
		MinY: float64(contour[0].Y), MaxY: float64(contour[0].Y),
	}
	for _, p := range contour[1:] {
		b.MinX = math.Min(b.MinX, float64(p.X))
		b.MaxX = math.Max(b.MaxX, float64(p.X))
		b.MinY = math.Min(b.MinY, float64(p.Y))
		b.MaxY = math.Max(b.MaxY, float64(p.Y))
	}
	return meanUnderPolygon(pm, contour, b)
}

// meanUnderPolygon rasterizes poly inside bounds (clamped to the map) and
// averages the probabilities it covers. Bounds entirely outside the map score
// zero; a single clamped row or column is still scored.
func meanUnderPolygon(pm ProbabilityMap, poly []image.Point, bounds geometry.Box) float64 {
	x0 := clampInt(int(math.Floor(bounds.MinX)), 0, pm.Width-1)
	x1 := clampInt(int(math.Ceil(bounds.MaxX)), 0, pm.Width-1)
	y0 := clampInt(int(math.Floor(bounds.MinY)), 0, pm.Height-1)
	y1 := clampInt(int(math.Ceil(bounds.MaxY)), 0, pm.Height-1)
	if x1 < x0 || y1 < y0 {
		return 0
	}

	rw, rh := x1-x0+1, y1-y0+1
	local := make([]image.Point, len(poly))
	for i, p := range poly {
		local[i] = image.Point{X: p.X - x0, Y: p.Y - y0}
	}
	mask := mempool.GetBool(rw * rh)
	defer mempool.PutBool(mask)
	geometry.FillPolygon(mask, rw, rh, local)

	var sum float64
	var n int
	for y := range rh {
		row := (y0+y)*pm.Width + x0
		for x := range rw {
			if mask[y*rw+x] {
				sum += float64(pm.Data[row+x])
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
