// Package transform records the geometry-changing preprocessing applied to
// an input image and maps boxes found on the processed image back to the
// raw image.
package transform

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

// Entry is one recorded preprocessing step.
type Entry interface {
	// undo maps a point from the step's output back to its input.
	undo(p geometry.Point) geometry.Point
	fmt.Stringer
}

// Scale records a resize. Ratios are input size over output size, so
// undoing the step multiplies.
type Scale struct {
	RatioH float64
	RatioW float64
}

func (s Scale) undo(p geometry.Point) geometry.Point { return p.Scale(s.RatioW, s.RatioH) }

func (s Scale) String() string { return fmt.Sprintf("scale(h=%.4f, w=%.4f)", s.RatioH, s.RatioW) }

// Padding records a border added to the top and left of the image.
type Padding struct {
	Top  int
	Left int
}

func (p Padding) undo(pt geometry.Point) geometry.Point {
	return pt.Add(-float64(p.Left), -float64(p.Top))
}

func (p Padding) String() string { return fmt.Sprintf("padding(top=%d, left=%d)", p.Top, p.Left) }

// Record is the ordered log of steps applied to one image. It is not safe
// for concurrent use; each image gets its own.
type Record struct {
	raw     image.Point
	entries []Entry
}

// NewRecord starts a record for an image of the given raw size.
func NewRecord(raw image.Point) *Record {
	return &Record{raw: raw}
}

// Append adds a step in the order it was applied.
func (r *Record) Append(e Entry) {
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the recorded steps.
func (r *Record) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// RawSize is the size of the image before preprocessing.
func (r *Record) RawSize() image.Point { return r.raw }

// Point undoes every step in reverse order and clamps the result to the
// raw image bounds.
func (r *Record) Point(p geometry.Point) geometry.Point {
	for i := len(r.entries) - 1; i >= 0; i-- {
		p = r.entries[i].undo(p)
	}
	return geometry.Point{
		X: min(max(p.X, 0), float64(r.raw.X)),
		Y: min(max(p.Y, 0), float64(r.raw.Y)),
	}
}

// Quad maps all four corners of q to raw image space.
func (r *Record) Quad(q geometry.Quad) geometry.Quad {
	return q.Map(r.Point)
}

// Quads maps every quad into a new slice; the input is left untouched.
func (r *Record) Quads(qs []geometry.Quad) []geometry.Quad {
	if qs == nil {
		return nil
	}
	out := make([]geometry.Quad, len(qs))
	for i, q := range qs {
		out[i] = r.Quad(q)
	}
	return out
}
