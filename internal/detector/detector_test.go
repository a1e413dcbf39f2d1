package detector

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

func solidImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(0, 0, color.Black)
	return img
}

// rectEngine answers every request with a map holding one bright rectangle.
func rectEngine(t *testing.T, x0, y0, x1, y1 int) onnx.Engine {
	t.Helper()
	return onnx.EngineFunc(func(_ context.Context, in onnx.Tensor) (onnx.Tensor, error) {
		require.Len(t, in.Shape, 4)
		require.Equal(t, int64(3), in.Shape[1])
		h, w := in.Dim(2), in.Dim(3)
		pm := rectMap(w, h, x0, y0, x1, y1, 0.9)
		return onnx.Tensor{Data: pm.Data, Shape: []int64{1, 1, int64(h), int64(w)}}, nil
	})
}

func TestDetectorDetect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LimitType = LimitMax
	cfg.PostProcess.UseDilation = false
	d, err := New(rectEngine(t, 10, 10, 49, 19), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, d.Close()) }()

	res, err := d.Detect(context.Background(), solidImage(64, 32))
	require.NoError(t, err)
	assert.Equal(t, 64, res.MapWidth)
	assert.Equal(t, 32, res.MapHeight)
	require.Len(t, res.Regions, 1)
	r := res.Regions[0]
	assert.InDelta(t, 0.9, r.Score, 1e-6)
	for _, p := range r.Quad {
		assert.True(t, p.X >= 0 && p.X <= 63 && p.Y >= 0 && p.Y <= 31, "point %v", p)
	}
	assert.Less(t, r.Quad[0].X, r.Quad[1].X)
	assert.Less(t, r.Quad[1].Y, r.Quad[2].Y)
}

func TestDetectorErrors(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.Error(t, err)

	bad := DefaultConfig()
	bad.PostProcess.Thresh = 2
	_, err = New(rectEngine(t, 0, 0, 1, 1), bad)
	require.Error(t, err)

	boom := errors.New("boom")
	d, err := New(onnx.EngineFunc(func(context.Context, onnx.Tensor) (onnx.Tensor, error) {
		return onnx.Tensor{}, boom
	}), DefaultConfig())
	require.NoError(t, err)
	_, err = d.Detect(context.Background(), solidImage(40, 40))
	require.ErrorIs(t, err, boom)

	_, err = d.Detect(context.Background(), nil)
	require.ErrorIs(t, err, common.ErrNilImage)

	flat, err := New(onnx.EngineFunc(func(context.Context, onnx.Tensor) (onnx.Tensor, error) {
		return onnx.Tensor{Data: []float32{1, 2}, Shape: []int64{2}}, nil
	}), DefaultConfig())
	require.NoError(t, err)
	_, err = flat.Detect(context.Background(), solidImage(40, 40))
	require.ErrorIs(t, err, common.ErrInvalidShape)

	require.NoError(t, flat.Close())
	require.NoError(t, flat.Close())
	_, err = flat.Detect(context.Background(), solidImage(40, 40))
	require.Error(t, err)
}

func TestInputSize(t *testing.T) {
	tests := []struct {
		name   string
		lt     LimitType
		limit  int
		w, h   int
		ww, wh int
	}{
		{"min grows short side", LimitMin, 736, 100, 50, 1472, 736},
		{"min keeps large image", LimitMin, 736, 1000, 800, 992, 800},
		{"max keeps small image", LimitMax, 1500, 1200, 800, 1216, 800},
		{"max shrinks long side", LimitMax, 2000, 4000, 1000, 1984, 512},
		{"never below 32", LimitMax, 960, 10, 5, 32, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := inputSize(tt.lt, tt.limit, tt.w, tt.h)
			assert.Equal(t, tt.ww, w)
			assert.Equal(t, tt.wh, h)
		})
	}
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, 736, effectiveLimit(LimitMin, 736, 5000))
	assert.Equal(t, 960, effectiveLimit(LimitMax, 736, 500))
	assert.Equal(t, 1500, effectiveLimit(LimitMax, 736, 960))
	assert.Equal(t, 2000, effectiveLimit(LimitMax, 736, 1500))
}

func TestParseLimitType(t *testing.T) {
	lt, err := ParseLimitType("MAX")
	require.NoError(t, err)
	assert.Equal(t, LimitMax, lt)
	_, err = ParseLimitType("both")
	require.Error(t, err)
}

func TestPreprocessShape(t *testing.T) {
	in, err := preprocess(solidImage(100, 50), LimitMin, 64)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 64, 128}, in.Shape)
	assert.InDelta(t, 1.0, in.Data[len(in.Data)-1], 1e-6)
}

func TestFilterRegions(t *testing.T) {
	regions := []ScoredRegion{
		{Quad: geometry.Quad{{X: 50, Y: 40}, {X: 10, Y: 10}, {X: 50, Y: 10}, {X: 10, Y: 40}}, Score: 0.9},
		{Quad: geometry.RectQuad(0, 0, 3, 20), Score: 0.8},
		{Quad: geometry.RectQuad(-5, -5, 200, 30), Score: 0.7},
	}
	got := FilterRegions(regions, 100, 50)
	require.Len(t, got, 2)
	assert.Equal(t, geometry.RectQuad(10, 10, 50, 40), got[0].Quad)
	assert.Equal(t, geometry.RectQuad(0, 0, 99, 30), got[1].Quad)
	assert.InDelta(t, 0.7, got[1].Score, 1e-12)
}

func TestSortRegions(t *testing.T) {
	at := func(x, y float64) ScoredRegion { return ScoredRegion{Quad: geometry.RectQuad(x, y, x+5, y+5)} }
	in := []ScoredRegion{at(0, 50), at(100, 5), at(10, 8)}
	got := SortRegions(in)
	assert.Equal(t, []ScoredRegion{at(10, 8), at(100, 5), at(0, 50)}, got)
	assert.Equal(t, at(0, 50), in[0], "input must not be reordered")
}
