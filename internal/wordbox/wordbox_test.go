package wordbox

import (
	"image"
	"image/color"
	"sort"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/rapidocr-go/internal/crop"
	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/recognizer"
)

func assertQuadNear(t *testing.T, want, got geometry.Quad) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, 1e-6, "corner %d x", i)
		assert.InDelta(t, want[i].Y, got[i].Y, 1e-6, "corner %d y", i)
	}
}

func TestResolveOverlaps(t *testing.T) {
	spans := []Span{{X0: 0, X1: 60, Text: "a"}, {X0: 40, X1: 100, Text: "b"}}
	ResolveOverlaps(spans)
	assert.Equal(t, []Span{{X0: 0, X1: 50, Text: "a"}, {X0: 50, X1: 100, Text: "b"}}, spans)

	touching := []Span{{X0: 0, X1: 20}, {X0: 20, X1: 40}}
	ResolveOverlaps(touching)
	assert.Equal(t, []Span{{X0: 0, X1: 20}, {X0: 20, X1: 40}}, touching)

	ResolveOverlaps(nil)
}

func TestLayout(t *testing.T) {
	line := recognizer.Line{
		Text:          "abcd中",
		TimestepCount: 40,
		Words: []recognizer.Word{
			{Chars: []string{"a", "b"}, Columns: []int{2, 6}, Confidences: []float64{0.9, 0.8}},
			{Chars: []string{"中"}, Columns: []int{30}, Script: recognizer.ScriptCJK, Confidences: []float64{0.7}},
			{Chars: []string{"c", "d"}, Columns: []int{20, 24}, Confidences: []float64{0.6, 0.5}},
		},
	}
	spans := Layout(line, 200)
	require.Len(t, spans, 5)

	// cell 5, latin width 20 from both words, CJK falls back to 200/5
	assert.Equal(t, []Span{
		{X0: 2, X1: 22, Text: "a", Confidence: 0.9},
		{X0: 22, X1: 42, Text: "b", Confidence: 0.8},
		{X0: 92, X1: 112, Text: "c", Confidence: 0.6},
		{X0: 112, X1: 132, Text: "d", Confidence: 0.5},
		{X0: 132, X1: 172, Text: "中", Confidence: 0.7},
	}, spans)
}

func TestLayoutClampsToCrop(t *testing.T) {
	line := recognizer.Line{
		Text:          "ab",
		TimestepCount: 4,
		Words:         []recognizer.Word{{Chars: []string{"a"}, Columns: []int{0}}, {Chars: []string{"b"}, Columns: []int{3}}},
	}
	spans := Layout(line, 40)
	require.Len(t, spans, 2)
	// cell 10, fallback width 20
	assert.Equal(t, 0.0, spans[0].X0)
	assert.Equal(t, 15.0, spans[0].X1)
	assert.Equal(t, 25.0, spans[1].X0)
	assert.Equal(t, 40.0, spans[1].X1)

	assert.Nil(t, Layout(recognizer.Line{}, 40))
}

func TestInverseMapRoundTrip(t *testing.T) {
	t.Run("horizontal", func(t *testing.T) {
		line := geometry.Quad{{X: 10, Y: 20}, {X: 110, Y: 30}, {X: 108, Y: 60}, {X: 8, Y: 50}}
		w := geometry.Distance(line[0], line[1])
		h := geometry.Distance(line[0], line[3])

		got, err := InverseMap([]geometry.Quad{geometry.RectQuad(0, 0, w, h)}, line, false)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assertQuadNear(t, line, got[0])
	})

	t.Run("vertical", func(t *testing.T) {
		line := geometry.Quad{{X: 10, Y: 10}, {X: 40, Y: 12}, {X: 38, Y: 110}, {X: 8, Y: 108}}
		w := geometry.Distance(line[0], line[1])
		h := geometry.Distance(line[0], line[3])

		// the recognizer saw the crop turned on its side: h wide, w tall
		got, err := InverseMap([]geometry.Quad{geometry.RectQuad(0, 0, h, w)}, line, true)
		require.NoError(t, err)
		assertQuadNear(t, line, got[0])
	})

	t.Run("degenerate", func(t *testing.T) {
		_, err := InverseMap(nil, geometry.Quad{}, false)
		require.ErrorIs(t, err, ErrDegenerateLine)
	})
}

func TestReconstruct(t *testing.T) {
	line := recognizer.Line{
		Text:          "ab",
		TimestepCount: 40,
		Words: []recognizer.Word{
			{Chars: []string{"a", "b"}, Columns: []int{2, 6}, Confidences: []float64{0.9, 0.8}},
		},
	}
	lineQuad := geometry.RectQuad(100, 50, 300, 90)
	boxes, err := Reconstruct(line, lineQuad, Frame{Size: image.Pt(200, 40)})
	require.NoError(t, err)
	require.Len(t, boxes, 2)

	assert.Equal(t, "a", boxes[0].Text)
	assert.Equal(t, 0.9, boxes[0].Confidence)
	assertQuadNear(t, geometry.RectQuad(102, 50, 122, 90), boxes[0].Quad)
	assert.Equal(t, "b", boxes[1].Text)
	assertQuadNear(t, geometry.RectQuad(122, 50, 142, 90), boxes[1].Quad)

	// a flipped line keeps reading order, so x runs backwards
	flipped, err := Reconstruct(line, lineQuad, Frame{Size: image.Pt(200, 40), Flipped: true})
	require.NoError(t, err)
	require.Len(t, flipped, 2)
	assert.Equal(t, "a", flipped[0].Text)
	assertQuadNear(t, geometry.RectQuad(278, 50, 298, 90), flipped[0].Quad)
	assert.Equal(t, "b", flipped[1].Text)
	assertQuadNear(t, geometry.RectQuad(258, 50, 278, 90), flipped[1].Quad)

	none, err := Reconstruct(recognizer.Line{Text: "x", TimestepCount: 10}, lineQuad, Frame{Size: image.Pt(200, 40)})
	require.NoError(t, err)
	assert.Nil(t, none)
}

// TestCropReconstructRoundTrip cuts a line with crop.Quad and maps a glyph
// covering the whole crop back onto the line quad.
func TestCropReconstructRoundTrip(t *testing.T) {
	src := imaging.New(200, 200, color.White)
	glyph := recognizer.Line{
		Text:          "a",
		TimestepCount: 1,
		Words:         []recognizer.Word{{Chars: []string{"a"}, Columns: []int{0}, Confidences: []float64{1}}},
	}

	tests := []struct {
		name    string
		quad    geometry.Quad
		rotated bool
	}{
		{"horizontal", geometry.RectQuad(20, 30, 120, 60), false},
		{"vertical", geometry.RectQuad(20, 20, 50, 120), true},
		{"skewed", geometry.Quad{{X: 10, Y: 20}, {X: 110, Y: 30}, {X: 108, Y: 60}, {X: 8, Y: 50}}, false},
		{"skewed vertical", geometry.Quad{{X: 10, Y: 10}, {X: 40, Y: 12}, {X: 38, Y: 110}, {X: 8, Y: 108}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := crop.Quad(src, tt.quad)
			require.NoError(t, err)
			assert.Equal(t, tt.rotated, res.Rotated)

			boxes, err := Reconstruct(glyph, tt.quad, Frame{Size: res.Image.Bounds().Size(), Vertical: res.Rotated})
			require.NoError(t, err)
			require.Len(t, boxes, 1)

			want := geometry.OrderByCentroidAngle(tt.quad)
			for i := range want {
				assert.InDelta(t, want[i].X, boxes[0].Quad[i].X, 1, "corner %d x", i)
				assert.InDelta(t, want[i].Y, boxes[0].Quad[i].Y, 1, "corner %d y", i)
			}
		})
	}

	t.Run("rotation direction", func(t *testing.T) {
		img := imaging.New(200, 200, color.White)
		for y := 22; y <= 25; y++ {
			for x := 22; x <= 25; x++ {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			}
		}
		line := geometry.RectQuad(20, 20, 50, 120)
		res, err := crop.Quad(img, line)
		require.NoError(t, err)
		require.True(t, res.Rotated)

		// centre of the marker in the rotated crop, in pixel-centre units
		var sx, sy, n float64
		b := res.Image.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if res.Image.NRGBAAt(x, y).G < 128 {
					sx += float64(x) + 0.5
					sy += float64(y) + 0.5
					n++
				}
			}
		}
		require.NotZero(t, n)
		c := geometry.Pt(sx/n, sy/n)

		got, err := InverseMap([]geometry.Quad{{c, c, c, c}}, line, true)
		require.NoError(t, err)
		assert.InDelta(t, 24.0, got[0][0].X, 1)
		assert.InDelta(t, 24.0, got[0][0].Y, 1)
	})
}

func TestResolveOverlapsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("equal-width sorted spans neither overlap nor invert", prop.ForAll(
		func(lefts []float64, width float64) bool {
			sort.Float64s(lefts)
			spans := make([]Span, len(lefts))
			for i, l := range lefts {
				spans[i] = Span{X0: l, X1: l + width}
			}
			ResolveOverlaps(spans)
			for i, s := range spans {
				if s.X0 > s.X1 {
					return false
				}
				if i > 0 && spans[i-1].X1 > s.X0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 500)),
		gen.Float64Range(0, 120),
	))

	properties.TestingRun(t)
}
