// Package wordbox turns the word segments of a decoded text line into one
// quadrilateral per glyph, expressed in the coordinate space of the line's
// detection quad.
//
// Boxes are first laid out on the rectified crop: every kept timestep is a
// column of width cropWidth/TimestepCount, and every glyph gets a box of its
// script's average glyph width centred on its column. Neighbouring boxes
// that overlap are split at the midpoint, and the result is mapped back
// through the inverse of the perspective transform that produced the crop.
package wordbox

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/recognizer"
)

// Box is one glyph of a text line.
type Box struct {
	Text       string
	Quad       geometry.Quad
	Confidence float64
}

// Span is a glyph box on the rectified crop: [X0, X1] × [0, crop height].
type Span struct {
	X0, X1     float64
	Text       string
	Confidence float64
}

// Frame describes the image the recognizer read a line from.
type Frame struct {
	Size     image.Point
	Vertical bool // turned a quarter counter-clockwise from a tall crop
	Flipped  bool // turned 180° by the angle classifier
}

// Reconstruct computes glyph boxes for line. lineQuad is the detection quad
// the crop was cut from. The boxes are in reading order, which for a flipped
// line runs right to left in lineQuad's space.
func Reconstruct(line recognizer.Line, lineQuad geometry.Quad, frame Frame) ([]Box, error) {
	w, h := float64(frame.Size.X), float64(frame.Size.Y)
	if len(line.Words) == 0 || line.TimestepCount <= 0 || w <= 0 || h <= 0 {
		return nil, nil
	}

	spans := Layout(line, w)
	ResolveOverlaps(spans)

	quads := make([]geometry.Quad, len(spans))
	for i, s := range spans {
		if frame.Flipped {
			// mirrored spans keep reading order, so x decreases along the slice
			quads[i] = geometry.RectQuad(w-s.X1, 0, w-s.X0, h)
		} else {
			quads[i] = geometry.RectQuad(s.X0, 0, s.X1, h)
		}
	}
	mapped, err := InverseMap(quads, lineQuad, frame.Vertical)
	if err != nil {
		return nil, err
	}

	out := make([]Box, len(spans))
	for i, s := range spans {
		out[i] = Box{Text: s.Text, Quad: mapped[i], Confidence: s.Confidence}
	}
	return out, nil
}

// Layout places one span per glyph on a crop of width cropW and returns them
// sorted by left edge. Glyph text and confidence travel with their span.
func Layout(line recognizer.Line, cropW float64) []Span {
	if line.TimestepCount <= 0 {
		return nil
	}
	cell := cropW / line.TimestepCount

	widths := map[recognizer.Script][]float64{}
	for _, w := range line.Words {
		if n := len(w.Columns); n > 1 {
			width := float64(w.Columns[n-1]-w.Columns[0]) * cell / float64(n-1)
			widths[w.Script] = append(widths[w.Script], width)
		}
	}
	fallback := cropW / float64(max(utf8.RuneCountInString(line.Text), 1))

	var spans []Span
	for _, script := range []recognizer.Script{recognizer.ScriptCJK, recognizer.ScriptLatinOrDigit} {
		half := averageOr(widths[script], fallback) / 2
		for _, w := range line.Words {
			if w.Script != script {
				continue
			}
			for k, col := range w.Columns {
				center := (float64(col) + 0.5) * cell
				s := Span{
					X0: math.Max(math.Floor(center-half), 0),
					X1: math.Min(math.Floor(center+half), cropW),
				}
				if k < len(w.Chars) {
					s.Text = w.Chars[k]
				}
				if k < len(w.Confidences) {
					s.Confidence = w.Confidences[k]
				}
				spans = append(spans, s)
			}
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].X0 < spans[j].X0 })
	return spans
}

func averageOr(vals []float64, fallback float64) float64 {
	if len(vals) == 0 {
		return fallback
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// ResolveOverlaps walks neighbouring spans once; where one runs into the
// next, both edges move to the midpoint of the overlap.
func ResolveOverlaps(spans []Span) {
	for i := 0; i+1 < len(spans); i++ {
		cur, nxt := &spans[i], &spans[i+1]
		if cur.X1 > nxt.X0 {
			mid := (cur.X1 + nxt.X0) / 2
			cur.X1 = mid
			nxt.X0 = mid
		}
	}
}

// ErrDegenerateLine is returned when a line quad has no area to map through.
var ErrDegenerateLine = errors.New("degenerate line quad")

// InverseMap maps quads on the rectified crop of lineQuad back into the
// coordinate space lineQuad lives in. With vertical set, points are first
// taken from the rotated crop back to the upright one. Every returned quad
// is re-ordered by centroid angle.
func InverseMap(quads []geometry.Quad, lineQuad geometry.Quad, vertical bool) ([]geometry.Quad, error) {
	bb := lineQuad.BoundingBox()
	left, top := bb.MinX, bb.MinY
	shifted := lineQuad.Translate(-left, -top)

	cropW := geometry.Distance(shifted[0], shifted[1])
	cropH := geometry.Distance(shifted[0], shifted[3])
	if cropW == 0 || cropH == 0 {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateLine, lineQuad)
	}
	rect := [4]geometry.Point{{X: 0, Y: 0}, {X: cropW, Y: 0}, {X: cropW, Y: cropH}, {X: 0, Y: cropH}}
	m, err := geometry.PerspectiveTransform(shifted, rect)
	if err != nil {
		return nil, fmt.Errorf("word box transform: %w", err)
	}
	inv, err := m.Inverse()
	if err != nil {
		return nil, fmt.Errorf("word box transform: %w", err)
	}

	out := make([]geometry.Quad, len(quads))
	for i, q := range quads {
		mapped := q.Map(func(p geometry.Point) geometry.Point {
			if vertical {
				// undo the counter-clockwise quarter turn of tall crops
				p = geometry.Point{X: cropW - p.Y, Y: p.X}
			}
			return inv.Apply(p).Add(left, top)
		})
		out[i] = geometry.OrderByCentroidAngle(mapped)
	}
	return out, nil
}
