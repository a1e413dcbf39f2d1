// Package recognizer turns text-line crops into text: it batches crops by
// aspect ratio, runs the CTC recognition model and greedily decodes the
// output, optionally splitting each line into script-aware words.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/MeKo-Tech/rapidocr-go/internal/batch"
	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// Config holds recognizer settings.
type Config struct {
	ImageHeight int // model input height
	ImageWidth  int // base input width; ImageWidth/ImageHeight is the smallest batch ratio
	BatchSize   int
	// Clean, when set, is applied to each line's text after decoding.
	Clean *CleanOptions
}

// DefaultConfig returns the PP-OCR recognizer input geometry [3, 48, 320]
// with batches of 6.
func DefaultConfig() Config {
	return Config{ImageHeight: 48, ImageWidth: 320, BatchSize: 6}
}

// Validate checks sizes.
func (c Config) Validate() error {
	if c.ImageHeight <= 0 || c.ImageWidth <= 0 {
		return fmt.Errorf("invalid recognizer input size %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

func (c Config) baseRatio() float64 {
	return float64(c.ImageWidth) / float64(c.ImageHeight)
}

// Recognizer runs a CTC text recognition model.
type Recognizer struct {
	engine  onnx.Engine
	charset *Charset
	cfg     Config
	mu      sync.RWMutex
}

// New wraps engine. charset must match the model's class axis.
func New(engine onnx.Engine, charset *Charset, cfg Config) (*Recognizer, error) {
	if engine == nil {
		return nil, errors.New("recognizer engine is nil")
	}
	if charset == nil {
		return nil, common.ErrEmptyCharset
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognizer config: %w", err)
	}
	return &Recognizer{engine: engine, charset: charset, cfg: cfg}, nil
}

// Config returns the recognizer configuration.
func (r *Recognizer) Config() Config { return r.cfg }

// Charset returns the character table.
func (r *Recognizer) Charset() *Charset { return r.charset }

// Recognize decodes every crop. Crops are batched by ascending aspect ratio
// and padded to the widest crop of their batch; the result is in input
// order. With wordBox set each Line carries its Words and a TimestepCount
// rescaled to the crop's own width.
func (r *Recognizer) Recognize(ctx context.Context, crops []image.Image, wordBox bool) ([]Line, error) {
	if len(crops) == 0 {
		return nil, nil
	}
	for i, c := range crops {
		if c == nil {
			return nil, fmt.Errorf("crop %d: %w", i, common.ErrNilImage)
		}
	}

	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()
	if engine == nil {
		return nil, errors.New("recognizer is closed")
	}

	lines := make([]Line, len(crops))
	for _, g := range batch.ByAspectRatio(batch.Sizes(crops), r.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		maxRatio := g.MaxRatio(r.cfg.baseRatio())
		input := buildBatch(crops, g, r.cfg.ImageHeight, maxRatio)
		out, err := engine.Run(ctx, input)
		mempool.PutFloat32(input.Data)
		if err != nil {
			return nil, fmt.Errorf("recognition inference: %w", err)
		}
		if out.Dim(0) != len(g.Indices) {
			return nil, fmt.Errorf("%w: recognizer returned %d samples for a batch of %d",
				common.ErrInvalidShape, out.Dim(0), len(g.Indices))
		}
		if cs := out.Dim(2); cs > r.charset.Len() {
			slog.Debug("recognizer classes exceed character table",
				"classes", cs, "table", r.charset.Len())
		}

		decoded, err := Decode(out, r.charset, wordBox, g.Ratios, maxRatio)
		if err != nil {
			return nil, err
		}
		for k, idx := range g.Indices {
			if r.cfg.Clean != nil {
				decoded[k].Text = CleanText(decoded[k].Text, *r.cfg.Clean)
			}
			lines[idx] = decoded[k]
		}
	}
	return lines, nil
}

// Close releases the engine. It is safe to call more than once.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	return err
}

// LoadCharsetFor returns the character table for a recognition model. A
// table embedded in the model's "character" metadata takes precedence over
// dictPath.
func LoadCharsetFor(session onnx.SessionConfig, dictPath string) (*Charset, error) {
	value, ok, err := onnx.CustomMetadata(session, "character")
	if err != nil {
		slog.Warn("cannot read model metadata", "model", session.ModelPath, "error", err)
	}
	if ok && strings.TrimSpace(value) != "" {
		slog.Debug("using character table from model metadata", "model", session.ModelPath)
		return ParseCharset(strings.NewReader(value))
	}
	if dictPath == "" {
		return nil, fmt.Errorf("%w: model %s has no embedded table and no dictionary is configured",
			common.ErrEmptyCharset, session.ModelPath)
	}
	return LoadCharset(dictPath)
}
