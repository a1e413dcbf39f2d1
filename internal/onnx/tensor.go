// Package onnx wraps ONNX Runtime behind a small Engine interface so the
// detector, classifier and recognizer can be driven by a real model session
// or by an in-memory fake in tests.
package onnx

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
)

// ErrInvalidShape is returned when tensor data does not match its shape.
var ErrInvalidShape = common.ErrInvalidShape

// Tensor is a dense row-major float32 tensor. Image batches use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W] from
// data already laid out as CHW.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil tensor data")
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("%w: got %d values, want %d", ErrInvalidShape, len(data), want)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// NewBatchImageTensor stacks same-sized CHW images into [N, C, H, W].
func NewBatchImageTensor(images [][]float32, c, h, w int) (Tensor, error) {
	if len(images) == 0 {
		return Tensor{}, errors.New("empty batch")
	}
	per := c * h * w
	out := make([]float32, per*len(images))
	for i, d := range images {
		if len(d) != per {
			return Tensor{}, fmt.Errorf("%w: image %d has %d values, want %d", ErrInvalidShape, i, len(d), per)
		}
		copy(out[i*per:], d)
	}
	return Tensor{Data: out, Shape: []int64{int64(len(images)), int64(c), int64(h), int64(w)}}, nil
}

// Validate checks that every dimension is positive and the data length
// equals the product of the shape.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("%w: empty shape", ErrInvalidShape)
	}
	n := int64(1)
	for i, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidShape, i, d)
		}
		n *= d
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("%w: %d values for shape %v", ErrInvalidShape, len(t.Data), t.Shape)
	}
	return nil
}

// Dim returns dimension i, or 0 when the tensor has fewer dimensions.
func (t Tensor) Dim(i int) int {
	if i < 0 || i >= len(t.Shape) {
		return 0
	}
	return int(t.Shape[i])
}

// Stats returns min, max and mean of the data, for debug logging.
func (t Tensor) Stats() (minVal, maxVal, mean float32) {
	if len(t.Data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal = t.Data[0], t.Data[0]
	var sum float64
	for _, v := range t.Data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(t.Data)))
}
