// Package detector finds text regions: it prepares the detection model
// input, runs the model through an onnx.Engine and turns the resulting
// probability map into scored quadrilaterals (DB postprocessing).
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// Config holds detector settings.
type Config struct {
	LimitType    LimitType
	LimitSideLen int
	PostProcess  PostProcessOptions
}

// DefaultConfig returns the reference detector settings.
func DefaultConfig() Config {
	return Config{
		LimitType:    LimitMin,
		LimitSideLen: 736,
		PostProcess:  DefaultPostProcessOptions(),
	}
}

// Validate checks thresholds and sizes.
func (c Config) Validate() error {
	if c.LimitType != LimitMin && c.LimitType != LimitMax {
		return fmt.Errorf("unknown limit type %q", c.LimitType)
	}
	if c.LimitSideLen <= 0 {
		return fmt.Errorf("limit side length must be positive, got %d", c.LimitSideLen)
	}
	pp := c.PostProcess
	if pp.Thresh < 0 || pp.Thresh > 1 {
		return fmt.Errorf("thresh must be in [0,1], got %v", pp.Thresh)
	}
	if pp.BoxThresh < 0 || pp.BoxThresh > 1 {
		return fmt.Errorf("box thresh must be in [0,1], got %v", pp.BoxThresh)
	}
	if pp.UnclipRatio <= 0 {
		return fmt.Errorf("unclip ratio must be positive, got %v", pp.UnclipRatio)
	}
	if pp.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive, got %d", pp.MaxCandidates)
	}
	return nil
}

// Result is the outcome of detecting text in one image.
type Result struct {
	Regions   []ScoredRegion // in input-image pixels, filtered
	MapWidth  int
	MapHeight int
	Elapsed   time.Duration
}

// Detector runs a DB text detection model.
type Detector struct {
	engine onnx.Engine
	cfg    Config
	mu     sync.RWMutex
}

// New wraps engine with cfg.
func New(engine onnx.Engine, cfg Config) (*Detector, error) {
	if engine == nil {
		return nil, errors.New("detector engine is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return &Detector{engine: engine, cfg: cfg}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// Detect finds text regions in img.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, common.ErrNilImage
	}
	start := time.Now()
	b := img.Bounds()

	input, err := preprocess(img, d.cfg.LimitType, d.cfg.LimitSideLen)
	if err != nil {
		return nil, fmt.Errorf("detection preprocess: %w", err)
	}
	defer mempool.PutFloat32(input.Data)

	d.mu.RLock()
	engine := d.engine
	d.mu.RUnlock()
	if engine == nil {
		return nil, errors.New("detector is closed")
	}
	out, err := engine.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("detection inference: %w", err)
	}

	pm, err := probabilityMap(out)
	if err != nil {
		return nil, err
	}
	regions, err := PostProcess(pm, b.Dx(), b.Dy(), d.cfg.PostProcess)
	if err != nil {
		return nil, err
	}
	regions = FilterRegions(regions, b.Dx(), b.Dy())

	res := &Result{
		Regions:   regions,
		MapWidth:  pm.Width,
		MapHeight: pm.Height,
		Elapsed:   time.Since(start),
	}
	slog.Debug("detection done",
		"input", fmt.Sprintf("%dx%d", input.Dim(3), input.Dim(2)),
		"regions", len(regions),
		"elapsed", res.Elapsed)
	return res, nil
}

// probabilityMap takes the first plane of a [N, C, H, W] model output.
func probabilityMap(t onnx.Tensor) (ProbabilityMap, error) {
	if len(t.Shape) != 4 {
		return ProbabilityMap{}, fmt.Errorf("%w: detector output shape %v", common.ErrInvalidShape, t.Shape)
	}
	w, h := t.Dim(3), t.Dim(2)
	if w <= 0 || h <= 0 || len(t.Data) < w*h {
		return ProbabilityMap{}, fmt.Errorf("%w: detector output shape %v", common.ErrInvalidShape, t.Shape)
	}
	return ProbabilityMap{Data: t.Data[:w*h], Width: w, Height: h}, nil
}

// Close releases the engine.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine == nil {
		return nil
	}
	err := d.engine.Close()
	d.engine = nil
	return err
}
