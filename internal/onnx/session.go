package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Engine runs a single-input, single-output model.
type Engine interface {
	Run(ctx context.Context, input Tensor) (Tensor, error)
	Close() error
}

// SessionConfig describes how to open a model.
type SessionConfig struct {
	ModelPath   string
	LibraryPath string // explicit onnxruntime shared library, optional
	NumThreads  int
	GPU         GPUConfig
}

// Session is an Engine backed by an ONNX Runtime dynamic session.
type Session struct {
	cfg     SessionConfig
	session *ort.DynamicAdvancedSession
	input   ort.InputOutputInfo
	output  ort.InputOutputInfo
	mu      sync.RWMutex
}

var envOnce sync.Once
var envErr error

// NewSession opens cfg.ModelPath. The ONNX Runtime environment is
// initialized once per process.
func NewSession(cfg SessionConfig) (*Session, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}
	if err := initEnvironment(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		slog.Warn("GPU setup failed, using CPU", "model", cfg.ModelPath, "error", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("ONNX session ready",
		"model", cfg.ModelPath,
		"input", inputs[0].Name,
		"output", outputs[0].Name,
		"gpu", cfg.GPU.UseGPU,
		"threads", cfg.NumThreads)

	return &Session{cfg: cfg, session: sess, input: inputs[0], output: outputs[0]}, nil
}

func initEnvironment(libPath string, useGPU bool) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		} else if err := SetONNXLibraryPath(useGPU); err != nil {
			envErr = fmt.Errorf("failed to locate ONNX Runtime library: %w", err)
			return
		}
		if !ort.IsInitialized() {
			if err := ort.InitializeEnvironment(); err != nil {
				envErr = fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
			}
		}
	})
	return envErr
}

// Run feeds input through the model and copies the first output out of
// runtime-owned memory.
func (s *Session) Run(ctx context.Context, input Tensor) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	if err := input.Validate(); err != nil {
		return Tensor{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Tensor{}, errors.New("session is closed")
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = in.Destroy() }()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()

	ft, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("expected float32 output, got %T", outputs[0])
	}
	data := ft.GetData()
	out := Tensor{
		Data:  make([]float32, len(data)),
		Shape: append([]int64(nil), outputs[0].GetShape()...),
	}
	copy(out.Data, data)
	return out, nil
}

// Close releases the runtime session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// InputName returns the model's input name.
func (s *Session) InputName() string { return s.input.Name }

// CustomMetadata looks up key in the model's custom metadata map. Recognition
// models exported by RapidOCR carry their character table under "character".
func CustomMetadata(cfg SessionConfig, key string) (string, bool, error) {
	if err := initEnvironment(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return "", false, err
	}
	meta, err := ort.GetModelMetadata(cfg.ModelPath)
	if err != nil {
		return "", false, fmt.Errorf("failed to read model metadata: %w", err)
	}
	defer func() {
		if err := meta.Destroy(); err != nil {
			slog.Warn("failed to destroy model metadata", "error", err)
		}
	}()
	value, ok, err := meta.LookupCustomMetadataMap(key)
	if err != nil {
		return "", false, fmt.Errorf("failed to look up metadata %q: %w", key, err)
	}
	return value, ok, nil
}
