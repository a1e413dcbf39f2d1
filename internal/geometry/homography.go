package geometry

import (
	"errors"
	"math"
)

// ErrSingularTransform is returned when four point pairs do not define a
// perspective transform (collinear or repeated points).
var ErrSingularTransform = errors.New("singular perspective transform")

// Homography is a row-major 3x3 projective transform.
type Homography [9]float64

// PerspectiveTransform computes the homography mapping src[i] to dst[i].
func PerspectiveTransform(src, dst [4]Point) (Homography, error) {
	// Build 8x8 system A*h = b for the 8 unknowns (h00..h21), h22=1.
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		// x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		// y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return Homography{}, ErrSingularTransform
	}
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, nil
}

// Apply maps p through the transform.
func (m Homography) Apply(p Point) Point {
	x := m[0]*p.X + m[1]*p.Y + m[2]
	y := m[3]*p.X + m[4]*p.Y + m[5]
	z := m[6]*p.X + m[7]*p.Y + m[8]
	if z == 0 {
		return Point{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point{X: x / z, Y: y / z}
}

// Inverse returns the inverse transform.
func (m Homography) Inverse() (Homography, error) {
	c00 := m[4]*m[8] - m[5]*m[7]
	c01 := m[5]*m[6] - m[3]*m[8]
	c02 := m[3]*m[7] - m[4]*m[6]
	det := m[0]*c00 + m[1]*c01 + m[2]*c02
	if det == 0 || math.IsNaN(det) {
		return Homography{}, ErrSingularTransform
	}
	inv := 1 / det
	return Homography{
		c00 * inv,
		(m[2]*m[7] - m[1]*m[8]) * inv,
		(m[1]*m[5] - m[2]*m[4]) * inv,
		c01 * inv,
		(m[0]*m[8] - m[2]*m[6]) * inv,
		(m[2]*m[3] - m[0]*m[5]) * inv,
		c02 * inv,
		(m[1]*m[6] - m[0]*m[7]) * inv,
		(m[0]*m[4] - m[1]*m[3]) * inv,
	}, nil
}

func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	// Gauss-Jordan with partial pivoting
	for col := range 8 {
		pivot := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < 8; r++ {
			if v := math.Abs(a[r][col]); v > maxAbs {
				maxAbs = v
				pivot = r
			}
		}
		if maxAbs < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}
