// Package crop cuts text-line quadrilaterals out of an image as upright,
// axis-aligned crops for the classifier and recognizer.
package crop

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

// Result is a rectified crop.
type Result struct {
	Image   *image.NRGBA
	Rotated bool // turned 90° counter-clockwise after rectification
}

// Size returns the crop size before any rotation: the longer of each pair of
// opposite quad edges, truncated to whole pixels.
func Size(q geometry.Quad) (w, h int) {
	return int(q.Width()), int(q.Height())
}

// Quad perspective-rectifies q out of img. Corners are mapped to the
// rectangle [0,w]×[0,h] where (w, h) = Size(q); sampling is bilinear and
// pixels outside img repeat the nearest edge.
func Quad(img image.Image, q geometry.Quad) (Result, error) {
	if img == nil {
		return Result{}, common.ErrNilImage
	}
	w, h := Size(q)
	if w < 1 || h < 1 {
		return Result{}, fmt.Errorf("%w: crop of %dx%d", common.ErrInvalidShape, w, h)
	}

	fw, fh := float64(w), float64(h)
	m, err := geometry.PerspectiveTransform(q, [4]geometry.Point{{X: 0, Y: 0}, {X: fw, Y: 0}, {X: fw, Y: fh}, {X: 0, Y: fh}})
	if err != nil {
		return Result{}, fmt.Errorf("crop transform: %w", err)
	}
	inv, err := m.Inverse()
	if err != nil {
		return Result{}, fmt.Errorf("crop transform: %w", err)
	}

	dst := warp(imaging.Clone(img), inv, w, h)
	if geometry.IsVertical(fw, fh) {
		return Result{Image: imaging.Rotate90(dst), Rotated: true}, nil
	}
	return Result{Image: dst}, nil
}

// warp fills a w×h image by sampling src at inv(x, y) for every
// destination pixel.
func warp(src *image.NRGBA, inv geometry.Homography, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		row := dst.Pix[y*dst.Stride:]
		for x := range w {
			p := inv.Apply(geometry.Point{X: float64(x), Y: float64(y)})
			sampleBilinear(src, p.X, p.Y, row[x*4:x*4+4])
		}
	}
	return dst
}

// sampleBilinear writes the interpolated NRGBA value at (x, y) into out,
// replicating the border for coordinates outside src.
func sampleBilinear(src *image.NRGBA, x, y float64, out []uint8) {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if math.IsInf(x, 0) || math.IsNaN(x) || math.IsInf(y, 0) || math.IsNaN(y) {
		x, y = 0, 0
	}
	x = math.Max(0, math.Min(x, float64(sw-1)))
	y = math.Max(0, math.Min(y, float64(sh-1)))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, sw-1), min(y0+1, sh-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.Pix[y0*src.Stride+x0*4:]
	p10 := src.Pix[y0*src.Stride+x1*4:]
	p01 := src.Pix[y1*src.Stride+x0*4:]
	p11 := src.Pix[y1*src.Stride+x1*4:]
	for c := range 4 {
		top := float64(p00[c])*(1-fx) + float64(p10[c])*fx
		bottom := float64(p01[c])*(1-fx) + float64(p11[c])*fx
		out[c] = uint8(math.Round(top*(1-fy) + bottom*fy))
	}
}
