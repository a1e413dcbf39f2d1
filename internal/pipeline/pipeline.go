// Package pipeline wires the detector, angle classifier, recognizer and
// word-box reconstructor into a per-image OCR pass and runs that pass over
// many images with a worker pool.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/rapidocr-go/internal/classifier"
	"github.com/MeKo-Tech/rapidocr-go/internal/detector"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
	"github.com/MeKo-Tech/rapidocr-go/internal/recognizer"
	"github.com/MeKo-Tech/rapidocr-go/internal/transform"
)

// Options selects the stages of one OCR pass.
type Options struct {
	UseDet        bool
	UseCls        bool
	UseRec        bool
	ReturnWordBox bool
	TextScore     float64 // lines recognized below this confidence are dropped
	Preprocess    transform.Options
}

// DefaultOptions enables every stage except word boxes.
func DefaultOptions() Options {
	return Options{
		UseDet:     true,
		UseCls:     true,
		UseRec:     true,
		TextScore:  0.5,
		Preprocess: transform.DefaultOptions(),
	}
}

// Validate checks the text score and preprocessing limits.
func (o Options) Validate() error {
	if o.TextScore < 0 || o.TextScore > 1 {
		return fmt.Errorf("text score must be in [0,1], got %v", o.TextScore)
	}
	return o.Preprocess.Validate()
}

// ModelPaths locates the model and dictionary files.
type ModelPaths struct {
	Detector   string
	Classifier string
	Recognizer string
	Dictionary string // used when the recognizer model carries no character table
}

// Config holds configuration for the OCR pipeline and its components.
type Config struct {
	Options     Options
	Models      ModelPaths
	Detector    detector.Config
	Classifier  classifier.Config
	Recognizer  recognizer.Config
	LibraryPath string // onnxruntime shared library, optional
	NumThreads  int
	GPU         onnx.GPUConfig
	Parallel    ParallelConfig
}

// DefaultConfig returns a config with component defaults.
func DefaultConfig() Config {
	return Config{
		Options:    DefaultOptions(),
		Detector:   detector.DefaultConfig(),
		Classifier: classifier.DefaultConfig(),
		Recognizer: recognizer.DefaultConfig(),
		GPU:        onnx.DefaultGPUConfig(),
		Parallel:   DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an existing config.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelPaths overrides the non-empty model paths.
func (b *Builder) WithModelPaths(det, cls, rec string) *Builder {
	if det != "" {
		b.cfg.Models.Detector = det
	}
	if cls != "" {
		b.cfg.Models.Classifier = cls
	}
	if rec != "" {
		b.cfg.Models.Recognizer = rec
	}
	return b
}

// WithDictionaryPath sets the character table file.
func (b *Builder) WithDictionaryPath(path string) *Builder {
	b.cfg.Models.Dictionary = path
	return b
}

// WithDetectorThresholds sets the DB binarization and box thresholds.
func (b *Builder) WithDetectorThresholds(thresh float32, boxThresh float64) *Builder {
	b.cfg.Detector.PostProcess.Thresh = thresh
	b.cfg.Detector.PostProcess.BoxThresh = boxThresh
	return b
}

// WithUnclipRatio sets the detector's polygon expansion ratio.
func (b *Builder) WithUnclipRatio(r float64) *Builder {
	if r > 0 {
		b.cfg.Detector.PostProcess.UnclipRatio = r
	}
	return b
}

// WithTextScore sets the minimum line confidence.
func (b *Builder) WithTextScore(s float64) *Builder {
	b.cfg.Options.TextScore = s
	return b
}

// WithWordBoxes toggles per-glyph boxes.
func (b *Builder) WithWordBoxes(enabled bool) *Builder {
	b.cfg.Options.ReturnWordBox = enabled
	return b
}

// WithClassifier toggles the angle classifier.
func (b *Builder) WithClassifier(enabled bool) *Builder {
	b.cfg.Options.UseCls = enabled
	return b
}

// WithThreads sets intra-op thread counts for every model (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.NumThreads = n
	}
	return b
}

// WithGPU enables CUDA for every model.
func (b *Builder) WithGPU(enabled bool, deviceID int) *Builder {
	b.cfg.GPU.UseGPU = enabled
	b.cfg.GPU.DeviceID = deviceID
	return b
}

// WithParallelWorkers sets the number of parallel workers for ProcessImages.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the enabled stages have models and sane settings.
func (b *Builder) Validate() error {
	if err := b.cfg.Options.Validate(); err != nil {
		return err
	}
	o := b.cfg.Options
	if !o.UseDet && !o.UseCls && !o.UseRec {
		return errors.New("at least one of detection, classification and recognition must be enabled")
	}
	if o.UseDet && b.cfg.Models.Detector == "" {
		return errors.New("detector model path is empty")
	}
	if o.UseCls && b.cfg.Models.Classifier == "" {
		return errors.New("classifier model path is empty")
	}
	if o.UseRec && b.cfg.Models.Recognizer == "" {
		return errors.New("recognizer model path is empty")
	}
	return b.cfg.GPU.Validate()
}

func (b *Builder) session(path string) onnx.SessionConfig {
	return onnx.SessionConfig{
		ModelPath:   path,
		LibraryPath: b.cfg.LibraryPath,
		NumThreads:  b.cfg.NumThreads,
		GPU:         b.cfg.GPU,
	}
}

// Build opens a model session for every enabled stage.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: b.cfg}
	fail := func(err error) (*Pipeline, error) {
		_ = p.Close()
		return nil, err
	}

	if b.cfg.Options.UseDet {
		sess, err := onnx.NewSession(b.session(b.cfg.Models.Detector))
		if err != nil {
			return fail(fmt.Errorf("init detector: %w", err))
		}
		if p.Detector, err = detector.New(sess, b.cfg.Detector); err != nil {
			_ = sess.Close()
			return fail(fmt.Errorf("init detector: %w", err))
		}
	}
	if b.cfg.Options.UseCls {
		sess, err := onnx.NewSession(b.session(b.cfg.Models.Classifier))
		if err != nil {
			return fail(fmt.Errorf("init classifier: %w", err))
		}
		if p.Classifier, err = classifier.New(sess, b.cfg.Classifier); err != nil {
			_ = sess.Close()
			return fail(fmt.Errorf("init classifier: %w", err))
		}
	}
	if b.cfg.Options.UseRec {
		sc := b.session(b.cfg.Models.Recognizer)
		cs, err := recognizer.LoadCharsetFor(sc, b.cfg.Models.Dictionary)
		if err != nil {
			return fail(fmt.Errorf("init recognizer: %w", err))
		}
		sess, err := onnx.NewSession(sc)
		if err != nil {
			return fail(fmt.Errorf("init recognizer: %w", err))
		}
		if p.Recognizer, err = recognizer.New(sess, cs, b.cfg.Recognizer); err != nil {
			_ = sess.Close()
			return fail(fmt.Errorf("init recognizer: %w", err))
		}
	}

	slog.Debug("pipeline ready",
		"det", p.Detector != nil,
		"cls", p.Classifier != nil,
		"rec", p.Recognizer != nil,
		"word_box", b.cfg.Options.ReturnWordBox)
	return p, nil
}

// Pipeline wires together the OCR stages. A stage left nil is skipped.
type Pipeline struct {
	cfg        Config
	Detector   *detector.Detector
	Classifier *classifier.Classifier
	Recognizer *recognizer.Recognizer
}

// New assembles a pipeline from ready components; any of them may be nil.
func New(cfg Config, det *detector.Detector, cls *classifier.Classifier, rec *recognizer.Recognizer) (*Pipeline, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline options: %w", err)
	}
	if det == nil && cls == nil && rec == nil {
		return nil, errors.New("pipeline needs at least one stage")
	}
	return &Pipeline{cfg: cfg, Detector: det, Classifier: cls, Recognizer: rec}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Options returns the default options of ProcessImage.
func (p *Pipeline) Options() Options { return p.cfg.Options }

// Close releases all model sessions.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Detector != nil {
		errs = append(errs, p.Detector.Close())
	}
	if p.Classifier != nil {
		errs = append(errs, p.Classifier.Close())
	}
	if p.Recognizer != nil {
		errs = append(errs, p.Recognizer.Close())
	}
	return errors.Join(errs...)
}
