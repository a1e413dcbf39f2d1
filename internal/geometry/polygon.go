package geometry

import (
	"math"
	"sort"
)

// PolygonArea returns the absolute shoelace area of a closed polygon.
// Fewer than 3 points yield zero.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s / 2)
}

// PolygonPerimeter returns the sum of edge lengths of a closed polygon.
// Fewer than 3 points yield zero.
func PolygonPerimeter(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var s float64
	for i := range pts {
		s += Distance(pts[i], pts[(i+1)%len(pts)])
	}
	return s
}

// RotatedRect is a minimum-area enclosing rectangle.
type RotatedRect struct {
	Corners [4]Point // unordered corners, consecutive along the boundary
	Width   float64  // extent along the rectangle's first axis
	Height  float64  // extent along the perpendicular axis
}

// MinSide returns the shorter side of the rectangle.
func (r RotatedRect) MinSide() float64 { return math.Min(r.Width, r.Height) }

// MinAreaRect computes the minimum-area enclosing rectangle of pts using
// rotating calipers over the convex hull. One or two distinct points give a
// degenerate rectangle with zero height.
func MinAreaRect(pts []Point) (RotatedRect, bool) {
	if len(pts) == 0 {
		return RotatedRect{}, false
	}
	hull := ConvexHull(pts)
	switch len(hull) {
	case 1:
		p := hull[0]
		return RotatedRect{Corners: [4]Point{p, p, p, p}}, true
	case 2:
		a, b := hull[0], hull[1]
		return RotatedRect{Corners: [4]Point{a, b, b, a}, Width: Distance(a, b)}, true
	}
	return minAreaRectOfHull(hull), true
}

func minAreaRectOfHull(hull []Point) RotatedRect {
	bestArea := math.Inf(1)
	var bestU, bestV Point
	var bestMinS, bestMaxS, bestMinT, bestMaxT float64
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		ux, uy := dx/l, dy/l
		vx, vy := -uy, ux
		minS, maxS := math.Inf(1), math.Inf(-1)
		minT, maxT := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*ux + p.Y*uy
			t := p.X*vx + p.Y*vy
			minS = math.Min(minS, s)
			maxS = math.Max(maxS, s)
			minT = math.Min(minT, t)
			maxT = math.Max(maxT, t)
		}
		area := (maxS - minS) * (maxT - minT)
		if area < bestArea {
			bestArea = area
			bestU = Point{ux, uy}
			bestV = Point{vx, vy}
			bestMinS, bestMaxS, bestMinT, bestMaxT = minS, maxS, minT, maxT
		}
	}
	corner := func(s, t float64) Point {
		return Point{X: bestU.X*s + bestV.X*t, Y: bestU.Y*s + bestV.Y*t}
	}
	return RotatedRect{
		Corners: [4]Point{
			corner(bestMinS, bestMinT),
			corner(bestMaxS, bestMinT),
			corner(bestMaxS, bestMaxT),
			corner(bestMinS, bestMaxT),
		},
		Width:  bestMaxS - bestMinS,
		Height: bestMaxT - bestMinT,
	}
}

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in CCW order without
// duplicating the first point at the end.
func ConvexHull(pts []Point) []Point {
	n := len(pts)
	if n <= 1 {
		return append([]Point(nil), pts...)
	}
	p := make([]Point, n)
	copy(p, pts)
	sortPoints(p)
	p = removeDuplicatePoints(p)
	if len(p) <= 2 {
		return p
	}
	lower := buildLowerHull(p)
	upper := buildUpperHull(p)
	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func removeDuplicatePoints(p []Point) []Point {
	q := p[:0]
	for i, pt := range p {
		if i == 0 || pt != q[len(q)-1] {
			q = append(q, pt)
		}
	}
	return q
}

func buildLowerHull(p []Point) []Point {
	lower := make([]Point, 0, len(p))
	for _, pt := range p {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	return lower
}

func buildUpperHull(p []Point) []Point {
	upper := make([]Point, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		pt := p[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}
	return upper
}

func sortPoints(p []Point) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
