// Package classifier predicts whether a text-line crop is upside down and
// rotates it upright before recognition.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/rapidocr-go/internal/batch"
	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// Config holds classifier settings.
type Config struct {
	ImageHeight int // model input [3, ImageHeight, ImageWidth]
	ImageWidth  int
	BatchSize   int
	Thresh      float64  // minimum score before a "180" crop is rotated
	Labels      []string // one per model output class
}

// DefaultConfig returns the PP-OCR angle classifier settings.
func DefaultConfig() Config {
	return Config{
		ImageHeight: 48,
		ImageWidth:  192,
		BatchSize:   6,
		Thresh:      0.9,
		Labels:      []string{"0", "180"},
	}
}

// Validate checks sizes and thresholds.
func (c Config) Validate() error {
	if c.ImageHeight <= 0 || c.ImageWidth <= 0 {
		return fmt.Errorf("invalid classifier input size %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Thresh < 0 || c.Thresh > 1 {
		return fmt.Errorf("cls thresh must be in [0,1], got %v", c.Thresh)
	}
	if len(c.Labels) == 0 {
		return errors.New("classifier labels cannot be empty")
	}
	return nil
}

// Result is the predicted orientation of one crop.
type Result struct {
	Label   string
	Score   float64
	Rotated bool // the crop was turned 180°
}

// Classifier runs a text-line angle classification model.
type Classifier struct {
	engine onnx.Engine
	cfg    Config
	mu     sync.RWMutex
}

// New wraps engine with cfg.
func New(engine onnx.Engine, cfg Config) (*Classifier, error) {
	if engine == nil {
		return nil, errors.New("classifier engine is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	return &Classifier{engine: engine, cfg: cfg}, nil
}

// Config returns the classifier configuration.
func (c *Classifier) Config() Config { return c.cfg }

// Classify predicts a label for every crop and returns the crops with those
// labelled "180" above the threshold rotated by 180°. Input crops are never
// modified; both slices are in input order.
func (c *Classifier) Classify(ctx context.Context, crops []image.Image) ([]image.Image, []Result, error) {
	if len(crops) == 0 {
		return nil, nil, nil
	}
	for i, img := range crops {
		if img == nil {
			return nil, nil, fmt.Errorf("crop %d: %w", i, common.ErrNilImage)
		}
	}

	c.mu.RLock()
	engine := c.engine
	c.mu.RUnlock()
	if engine == nil {
		return nil, nil, errors.New("classifier is closed")
	}

	out := make([]image.Image, len(crops))
	copy(out, crops)
	results := make([]Result, len(crops))
	for _, g := range batch.ByAspectRatio(batch.Sizes(crops), c.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		input := c.buildBatch(crops, g)
		pred, err := engine.Run(ctx, input)
		mempool.PutFloat32(input.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("classification inference: %w", err)
		}
		labels, scores, err := c.decode(pred, len(g.Indices))
		if err != nil {
			return nil, nil, err
		}
		for k, idx := range g.Indices {
			r := Result{Label: labels[k], Score: scores[k]}
			if strings.Contains(r.Label, "180") && r.Score > c.cfg.Thresh {
				out[idx] = imaging.Rotate180(crops[idx])
				r.Rotated = true
			}
			results[idx] = r
		}
	}
	slog.Debug("classification done", "crops", len(crops))
	return out, results, nil
}

func (c *Classifier) buildBatch(crops []image.Image, g batch.Group) onnx.Tensor {
	h, w := c.cfg.ImageHeight, c.cfg.ImageWidth
	per := 3 * h * w
	data := mempool.GetFloat32(per * len(g.Indices))
	for k, idx := range g.Indices {
		imageio.ResizeNormalizeInto(data[k*per:(k+1)*per], crops[idx], w, h)
	}
	return onnx.Tensor{Data: data, Shape: []int64{int64(len(g.Indices)), 3, int64(h), int64(w)}}
}

// decode takes the argmax label of each [N, classes] row; the score is the
// model's value for that class.
func (c *Classifier) decode(pred onnx.Tensor, n int) ([]string, []float64, error) {
	if len(pred.Shape) != 2 || pred.Dim(0) != n || pred.Dim(1) <= 0 || len(pred.Data) != n*pred.Dim(1) {
		return nil, nil, fmt.Errorf("%w: classifier output shape %v for a batch of %d",
			common.ErrInvalidShape, pred.Shape, n)
	}
	classes := pred.Dim(1)
	if classes > len(c.cfg.Labels) {
		return nil, nil, fmt.Errorf("%w: %d classifier classes but %d labels",
			common.ErrInvalidShape, classes, len(c.cfg.Labels))
	}
	labels := make([]string, n)
	scores := make([]float64, n)
	for b := range n {
		row := pred.Data[b*classes : (b+1)*classes]
		best := 0
		for i := 1; i < classes; i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		labels[b] = c.cfg.Labels[best]
		scores[b] = float64(row[best])
	}
	return labels, scores, nil
}

// Close releases the engine. It is safe to call more than once.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil
	}
	err := c.engine.Close()
	c.engine = nil
	return err
}
