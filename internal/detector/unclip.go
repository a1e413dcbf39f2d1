package detector

import (
	clipper "github.com/ctessum/go.clipper"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

// unclip grows q outward by area*ratio/perimeter using a round-joined offset
// of the closed polygon. It returns nil when the offset produces nothing.
func unclip(q geometry.Quad, ratio float64) []geometry.Point {
	perimeter := q.Perimeter()
	if perimeter == 0 {
		return nil
	}
	distance := q.Area() * ratio / perimeter

	path := make(clipper.Path, 0, 4)
	for _, p := range q {
		path = append(path, &clipper.IntPoint{X: clipper.CInt(p.X), Y: clipper.CInt(p.Y)})
	}
	offset := clipper.NewClipperOffset()
	offset.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)
	soln := offset.Execute(distance)
	if len(soln) == 0 || len(soln[0]) == 0 {
		return nil
	}

	out := make([]geometry.Point, len(soln[0]))
	for i, p := range soln[0] {
		out[i] = geometry.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
