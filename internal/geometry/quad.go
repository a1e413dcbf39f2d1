package geometry

import (
	"math"
	"sort"
)

// Quad is a 4-point region ordered top-left, top-right, bottom-right,
// bottom-left. It is a value type: every transform returns a new Quad.
type Quad [4]Point

// RectQuad returns the axis-aligned quad spanning [x0,x1]×[y0,y1].
func RectQuad(x0, y0, x1, y1 float64) Quad {
	return Quad{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// Map applies fn to every corner and returns the resulting quad.
func (q Quad) Map(fn func(Point) Point) Quad {
	var out Quad
	for i, p := range q {
		out[i] = fn(p)
	}
	return out
}

// Translate returns q shifted by (dx, dy).
func (q Quad) Translate(dx, dy float64) Quad {
	return q.Map(func(p Point) Point { return p.Add(dx, dy) })
}

// Scale returns q scaled by (sx, sy) about the origin.
func (q Quad) Scale(sx, sy float64) Quad {
	return q.Map(func(p Point) Point { return p.Scale(sx, sy) })
}

// Clamp limits every coordinate to [0,maxX]×[0,maxY].
func (q Quad) Clamp(maxX, maxY float64) Quad {
	return q.Map(func(p Point) Point {
		return Point{X: clampFloat(p.X, 0, maxX), Y: clampFloat(p.Y, 0, maxY)}
	})
}

// Width is the longer of the top and bottom edges.
func (q Quad) Width() float64 {
	return math.Max(Distance(q[0], q[1]), Distance(q[2], q[3]))
}

// Height is the longer of the left and right edges.
func (q Quad) Height() float64 {
	return math.Max(Distance(q[0], q[3]), Distance(q[1], q[2]))
}

// Area returns the shoelace area of the quad.
func (q Quad) Area() float64 { return PolygonArea(q[:]) }

// Perimeter returns the sum of the quad's edge lengths.
func (q Quad) Perimeter() float64 { return PolygonPerimeter(q[:]) }

// BoundingBox returns the axis-aligned bounds of the quad.
func (q Quad) BoundingBox() Box { return BoundingBox(q[:]) }

// VerticalRatio is the height/width ratio from which a line is read
// top-to-bottom.
const VerticalRatio = 1.5

// IsVertical reports whether a w×h line is tall enough to be read
// top-to-bottom.
func IsVertical(w, h float64) bool {
	if w <= 0 {
		return h > 0
	}
	return h/w >= VerticalRatio
}

// OrderFromMinAreaRect orders 4 points as [TL, TR, BR, BL]. Points are
// sorted by x (then y); of the two leftmost, the one with larger y is the
// bottom-left, and likewise for the two rightmost. The result depends only on
// the set of points, so applying it to its own output is a no-op.
func OrderFromMinAreaRect(pts [4]Point) Quad {
	p := pts
	sort.SliceStable(p[:], func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})

	i1, i4 := 1, 0
	if p[1].Y > p[0].Y {
		i1, i4 = 0, 1
	}
	i2, i3 := 3, 2
	if p[3].Y > p[2].Y {
		i2, i3 = 2, 3
	}
	return Quad{p[i1], p[i2], p[i3], p[i4]}
}

// OrderByCentroidAngle orders points by polar angle around their centroid,
// ascending from -π. In image coordinates (y down) this yields a clockwise
// sequence starting near the top-left corner.
func OrderByCentroidAngle(pts [4]Point) Quad {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	p := pts
	sort.SliceStable(p[:], func(i, j int) bool {
		return math.Atan2(p[i].Y-cy, p[i].X-cx) < math.Atan2(p[j].Y-cy, p[j].X-cx)
	})
	return Quad(p)
}
