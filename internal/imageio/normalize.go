package imageio

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// NormalizeInto writes img into dst as a 3×dstH×dstW CHW plane in BGR
// order with each value mapped to (v/255-0.5)/0.5. img is placed at the
// top-left corner; cells outside it are left untouched, so a zeroed dst
// yields zero padding. dst must hold at least 3*dstW*dstH values.
func NormalizeInto(dst []float32, img image.Image, dstW, dstH int) {
	src := imaging.Clone(img)
	w := min(src.Rect.Dx(), dstW)
	h := min(src.Rect.Dy(), dstH)
	plane := dstW * dstH
	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			p := row[x*4 : x*4+3]
			i := y*dstW + x
			dst[i] = scale(p[2])
			dst[plane+i] = scale(p[1])
			dst[2*plane+i] = scale(p[0])
		}
	}
}

func scale(v uint8) float32 {
	return (float32(v)/255 - 0.5) / 0.5
}

// ResizeNormalizeInto scales img to height h keeping its aspect ratio, caps
// the width at w and writes it left-aligned into the zeroed 3×h×w plane dst.
// It returns the width the image occupies.
func ResizeNormalizeInto(dst []float32, img image.Image, w, h int) int {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0
	}
	ratio := float64(b.Dx()) / float64(b.Dy())
	rw := min(int(math.Ceil(float64(h)*ratio)), w)
	rw = max(rw, 1)
	NormalizeInto(dst, imaging.Resize(img, rw, h, imaging.Linear), w, h)
	return rw
}
