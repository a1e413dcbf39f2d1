package detector

import "github.com/MeKo-Tech/rapidocr-go/internal/mempool"

// binarize marks pixels whose probability is strictly above thresh. The
// returned mask comes from mempool and must be released with mempool.PutBool.
func binarize(prob []float32, w, h int, thresh float32) []bool {
	mask := mempool.GetBool(w * h)
	for i, v := range prob[:w*h] {
		mask[i] = v > thresh
	}
	return mask
}

// dilate2x2 dilates mask with a 2×2 structuring element anchored at its
// bottom-right cell: a pixel is set when it or its left, upper or upper-left
// neighbour is set. Regions grow one pixel to the right and downwards.
func dilate2x2(mask []bool, w, h int) []bool {
	out := mempool.GetBool(w * h)
	for y := range h {
		row := y * w
		for x := range w {
			v := mask[row+x]
			if !v && x > 0 {
				v = mask[row+x-1]
			}
			if !v && y > 0 {
				v = mask[row-w+x] || (x > 0 && mask[row-w+x-1])
			}
			out[row+x] = v
		}
	}
	return out
}
