package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

func TestScoreSinglePixelStrip(t *testing.T) {
	row := rectMap(20, 10, 2, 3, 12, 3, 0.8)
	assert.InDelta(t, 0.8, scoreContour(row, []image.Point{{X: 2, Y: 3}, {X: 12, Y: 3}}), 1e-6)

	// a quad hanging off the bottom edge clamps to the last row
	bottom := rectMap(20, 10, 2, 9, 12, 9, 0.8)
	q := geometry.Quad{{X: 2, Y: 9}, {X: 12, Y: 9}, {X: 12, Y: 14}, {X: 2, Y: 14}}
	assert.InDelta(t, 0.8, scoreQuad(bottom, q), 1e-6)

	col := rectMap(20, 10, 19, 1, 19, 8, 0.6)
	q = geometry.Quad{{X: 19, Y: 1}, {X: 25, Y: 1}, {X: 25, Y: 8}, {X: 19, Y: 8}}
	assert.InDelta(t, 0.6, scoreQuad(col, q), 1e-6)

	q = geometry.Quad{{X: 30, Y: 1}, {X: 35, Y: 1}, {X: 35, Y: 8}, {X: 30, Y: 8}}
	assert.Zero(t, scoreQuad(col, q), "outside the map")
}
