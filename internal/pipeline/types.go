package pipeline

import (
	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

// Point is a polygon corner in raw-image pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Box is the integer bounding box of a polygon.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// WordResult is one glyph box of a line.
type WordResult struct {
	Text       string        `json:"text" yaml:"text"`
	Confidence float64       `json:"confidence" yaml:"confidence"`
	Polygon    []Point       `json:"polygon" yaml:"polygon"`
	Quad       geometry.Quad `json:"-" yaml:"-"`
}

// LineResult combines detection geometry with recognition output.
type LineResult struct {
	// Geometry and detection; empty when detection is disabled
	Polygon       []Point       `json:"polygon,omitempty" yaml:"polygon,omitempty"`
	Box           *Box          `json:"box,omitempty" yaml:"box,omitempty"`
	DetConfidence float64       `json:"det_confidence" yaml:"det_confidence"`
	Quad          geometry.Quad `json:"-" yaml:"-"`

	// Angle classification
	Label    string  `json:"cls_label,omitempty" yaml:"cls_label,omitempty"`
	ClsScore float64 `json:"cls_score,omitempty" yaml:"cls_score,omitempty"`
	Rotated  bool    `json:"rotated" yaml:"rotated"`

	// Recognition
	Text       string       `json:"text" yaml:"text"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
	Words      []WordResult `json:"words,omitempty" yaml:"words,omitempty"`
}

// Processing holds per-stage durations of one image.
type Processing struct {
	DetectionNs      int64 `json:"detection_ns" yaml:"detection_ns"`
	ClassificationNs int64 `json:"classification_ns" yaml:"classification_ns"`
	RecognitionNs    int64 `json:"recognition_ns" yaml:"recognition_ns"`
	TotalNs          int64 `json:"total_ns" yaml:"total_ns"`
}

// ImageResult is the per-image OCR output.
type ImageResult struct {
	Width      int          `json:"width" yaml:"width"`
	Height     int          `json:"height" yaml:"height"`
	Text       string       `json:"text" yaml:"text"`
	Lines      []LineResult `json:"lines" yaml:"lines"`
	Processing Processing   `json:"processing" yaml:"processing"`
}

func polygonOf(q geometry.Quad) []Point {
	out := make([]Point, len(q))
	for i, p := range q {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

func boxOf(q geometry.Quad) *Box {
	bb := q.BoundingBox()
	x, y := int(bb.MinX), int(bb.MinY)
	return &Box{X: x, Y: y, W: int(bb.MaxX+0.5) - x, H: int(bb.MaxY+0.5) - y}
}
