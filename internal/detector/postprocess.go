package detector

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
)

// ScoreMode selects the polygon a candidate is scored under.
type ScoreMode int

const (
	// ScoreFast averages under the fitted quad.
	ScoreFast ScoreMode = iota
	// ScoreSlow averages under the traced contour.
	ScoreSlow
)

// ParseScoreMode accepts "fast" or "slow" in any case.
func ParseScoreMode(s string) (ScoreMode, error) {
	switch strings.ToLower(s) {
	case "fast", "":
		return ScoreFast, nil
	case "slow":
		return ScoreSlow, nil
	}
	return ScoreFast, fmt.Errorf("unknown score mode %q", s)
}

func (m ScoreMode) String() string {
	if m == ScoreSlow {
		return "slow"
	}
	return "fast"
}

// PostProcessOptions controls DB postprocessing.
type PostProcessOptions struct {
	Thresh        float32 // binarization threshold
	BoxThresh     float64 // minimum region score
	MaxCandidates int     // contours examined, in trace order
	UnclipRatio   float64
	ScoreMode     ScoreMode
	UseDilation   bool
	MinSize       float64 // minimum short side of the fitted rectangle
}

// DefaultPostProcessOptions returns the reference DB settings.
func DefaultPostProcessOptions() PostProcessOptions {
	return PostProcessOptions{
		Thresh:        0.3,
		BoxThresh:     0.5,
		MaxCandidates: 1000,
		UnclipRatio:   1.6,
		ScoreMode:     ScoreFast,
		UseDilation:   true,
		MinSize:       3,
	}
}

// ProbabilityMap is the detector's H×W text probability output.
type ProbabilityMap struct {
	Data   []float32
	Width  int
	Height int
}

// Validate rejects empty maps and data that does not match the dimensions.
func (pm ProbabilityMap) Validate() error {
	if pm.Width <= 0 || pm.Height <= 0 {
		return fmt.Errorf("%w: probability map %dx%d", common.ErrInvalidShape, pm.Width, pm.Height)
	}
	if len(pm.Data) != pm.Width*pm.Height {
		return fmt.Errorf("%w: %d values for %dx%d probability map",
			common.ErrInvalidShape, len(pm.Data), pm.Width, pm.Height)
	}
	return nil
}

// ScoredRegion is one detected text region.
type ScoredRegion struct {
	Quad  geometry.Quad
	Score float64
}

// PostProcess turns a probability map into scored quads in a destW×destH
// frame. Regions appear in contour trace order. Rejected candidates are
// dropped silently; only a malformed map or destination size is an error.
func PostProcess(pm ProbabilityMap, destW, destH int, opts PostProcessOptions) ([]ScoredRegion, error) {
	if err := pm.Validate(); err != nil {
		return nil, err
	}
	if destW <= 0 || destH <= 0 {
		return nil, fmt.Errorf("%w: destination %dx%d", common.ErrInvalidShape, destW, destH)
	}

	w, h := pm.Width, pm.Height
	mask := binarize(pm.Data, w, h, opts.Thresh)
	if opts.UseDilation {
		dilated := dilate2x2(mask, w, h)
		mempool.PutBool(mask)
		mask = dilated
	}
	contours := findContours(mask, w, h, opts.MaxCandidates)
	mempool.PutBool(mask)

	fw, fh := float64(w), float64(h)
	dw, dh := float64(destW), float64(destH)
	regions := make([]ScoredRegion, 0, len(contours))
	for _, c := range contours {
		r, ok := regionFromContour(pm, c, opts)
		if !ok {
			continue
		}
		r.Quad = r.Quad.Map(func(p geometry.Point) geometry.Point {
			return geometry.Point{
				X: clampFloat(roundHalfUp(p.X/fw*dw), 0, dw),
				Y: clampFloat(roundHalfUp(p.Y/fh*dh), 0, dh),
			}
		})
		regions = append(regions, r)
	}
	return regions, nil
}

// regionFromContour applies fit, score, unclip and refit to one contour.
// The returned quad is still in probability-map coordinates.
func regionFromContour(pm ProbabilityMap, contour []image.Point, opts PostProcessOptions) (ScoredRegion, bool) {
	pts := make([]geometry.Point, len(contour))
	for i, p := range contour {
		pts[i] = geometry.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	box, side, ok := miniBox(pts)
	if !ok || side < opts.MinSize {
		return ScoredRegion{}, false
	}

	var score float64
	if opts.ScoreMode == ScoreSlow {
		score = scoreContour(pm, contour)
	} else {
		score = scoreQuad(pm, box)
	}
	if score < opts.BoxThresh {
		return ScoredRegion{}, false
	}

	expanded := unclip(box, opts.UnclipRatio)
	if len(expanded) == 0 {
		return ScoredRegion{}, false
	}
	grown, side, ok := miniBox(expanded)
	if !ok || side < opts.MinSize+2 {
		return ScoredRegion{}, false
	}
	return ScoredRegion{Quad: grown, Score: score}, true
}

// miniBox fits the minimum-area rectangle to pts and returns its ordered
// corners and shorter side.
func miniBox(pts []geometry.Point) (geometry.Quad, float64, bool) {
	rect, ok := geometry.MinAreaRect(pts)
	if !ok {
		return geometry.Quad{}, 0, false
	}
	return geometry.OrderFromMinAreaRect(rect.Corners), rect.MinSide(), true
}

// roundHalfUp rounds to the nearest integer with halves going up.
func roundHalfUp(v float64) float64 { return math.Floor(v + 0.5) }

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
