package recognizer

import (
	"image"

	"github.com/MeKo-Tech/rapidocr-go/internal/batch"
	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// batchWidth is the padded input width for a batch whose widest crop has
// width/height ratio maxRatio.
func batchWidth(height int, maxRatio float64) int {
	return int(float64(height) * maxRatio)
}

// buildBatch resizes the group's crops to height, pads them on the right to
// the batch width and stacks them into a pooled [N, 3, H, W] tensor.
func buildBatch(crops []image.Image, g batch.Group, height int, maxRatio float64) onnx.Tensor {
	width := batchWidth(height, maxRatio)
	per := 3 * height * width
	data := mempool.GetFloat32(per * len(g.Indices))
	for k, idx := range g.Indices {
		imageio.ResizeNormalizeInto(data[k*per:(k+1)*per], crops[idx], width, height)
	}
	return onnx.Tensor{
		Data:  data,
		Shape: []int64{int64(len(g.Indices)), 3, int64(height), int64(width)},
	}
}
