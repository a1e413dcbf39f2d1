package detector

import (
	"image"

	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
)

// Neighbour directions in clockwise screen order (y grows downwards).
const (
	dirE = iota
	dirSE
	dirS
	dirSW
	dirW
	dirNW
	dirN
	dirNE
)

var (
	dirDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	dirDY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// findContours traces every outer and hole border of mask with Suzuki-Abe
// border following and returns them in discovery (raster) order. Each
// contour keeps only the pixels where the chain direction changes, so a
// filled rectangle yields its 4 corners. At most limit contours are traced
// when limit > 0.
func findContours(mask []bool, w, h, limit int) [][]image.Point {
	stride := w + 2
	f := mempool.GetInt32(stride * (h + 2))
	defer mempool.PutInt32(f)

	for y := range h {
		for x := range w {
			if mask[y*w+x] {
				f[(y+1)*stride+x+1] = 1
			}
		}
	}

	var offs [8]int
	for d := range 8 {
		offs[d] = dirDY[d]*stride + dirDX[d]
	}

	var contours [][]image.Point
	nbd := int32(1)
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			i := y*stride + x
			var from int
			switch {
			case f[i] == 1 && f[i-1] == 0:
				from = dirW // outer border
			case f[i] >= 1 && f[i+1] == 0:
				from = dirE // hole border
			default:
				continue
			}
			nbd++
			contours = append(contours, followBorder(f, stride, offs, i, from, nbd))
			if limit > 0 && len(contours) >= limit {
				return contours
			}
		}
	}
	return contours
}

// followBorder walks one border starting at pixel start whose zero
// neighbour lies in direction from. Visited pixels are relabelled with nbd
// (or -nbd when their east neighbour is background) so the raster scan
// never starts the same border twice.
func followBorder(f []int32, stride int, offs [8]int, start, from int, nbd int32) []image.Point {
	pt := func(i int) image.Point {
		return image.Point{X: i%stride - 1, Y: i/stride - 1}
	}

	d1 := -1
	for k := 1; k < 8; k++ {
		d := (from + k) & 7
		if f[start+offs[d]] != 0 {
			d1 = d
			break
		}
	}
	if d1 < 0 {
		f[start] = -nbd
		return []image.Point{pt(start)}
	}

	var pts []image.Point
	i1 := start + offs[d1]
	i3 := start
	back := d1            // direction from the current pixel to the previous one
	prev := (d1 + 4) & 7 // direction the chain arrived with
	for {
		d := back
		eastZero := false
		for {
			d = (d + 7) & 7
			if f[i3+offs[d]] != 0 {
				break
			}
			if d == dirE {
				eastZero = true
			}
		}
		i4 := i3 + offs[d]

		if eastZero {
			f[i3] = -nbd
		} else if f[i3] == 1 {
			f[i3] = nbd
		}

		if d != prev {
			pts = append(pts, pt(i3))
			prev = d
		}
		if i4 == start && i3 == i1 {
			return pts
		}
		i3 = i4
		back = (d + 4) & 7
	}
}
