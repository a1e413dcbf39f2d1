package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv names the environment variable that overrides the shared
// library search.
const LibraryEnv = "RAPIDOCR_ONNX_LIB"

// GPUConfig holds CUDA execution provider settings.
type GPUConfig struct {
	UseGPU              bool
	DeviceID            int
	GPUMemLimit         uint64 // bytes, 0 = unlimited
	ArenaExtendStrategy string // kNextPowerOfTwo | kSameAsRequested
	CUDNNConvAlgoSearch string // EXHAUSTIVE | HEURISTIC | DEFAULT
}

// DefaultGPUConfig returns a CPU-only configuration with CUDA defaults filled in.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy: "kNextPowerOfTwo",
		CUDNNConvAlgoSearch: "DEFAULT",
	}
}

// Validate checks the enumerated CUDA options.
func (g GPUConfig) Validate() error {
	if !g.UseGPU {
		return nil
	}
	if g.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", g.DeviceID)
	}
	switch g.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
	default:
		return fmt.Errorf("invalid arena extend strategy: %s", g.ArenaExtendStrategy)
	}
	switch g.CUDNNConvAlgoSearch {
	case "", "EXHAUSTIVE", "HEURISTIC", "DEFAULT":
	default:
		return fmt.Errorf("invalid cudnn conv algo search: %s", g.CUDNNConvAlgoSearch)
	}
	return nil
}

func (g GPUConfig) providerSettings() map[string]string {
	s := map[string]string{
		"device_id":                 strconv.Itoa(g.DeviceID),
		"do_copy_in_default_stream": "1",
	}
	if g.GPUMemLimit > 0 {
		s["gpu_mem_limit"] = strconv.FormatUint(g.GPUMemLimit, 10)
	}
	if g.ArenaExtendStrategy != "" {
		s["arena_extend_strategy"] = g.ArenaExtendStrategy
	}
	if g.CUDNNConvAlgoSearch != "" {
		s["cudnn_conv_algo_search"] = g.CUDNNConvAlgoSearch
	}
	return s
}

// ConfigureSessionForGPU appends the CUDA provider when GPU use is requested.
func ConfigureSessionForGPU(opts *ort.SessionOptions, g GPUConfig) error {
	if !g.UseGPU {
		return nil
	}
	if err := g.Validate(); err != nil {
		return err
	}
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options: %w", err)
	}
	defer func() { _ = cuda.Destroy() }()

	if err := cuda.Update(g.providerSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("failed to append CUDA provider: %w", err)
	}
	return nil
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// libraryCandidates lists where the shared library is looked for, most
// specific first.
func libraryCandidates(useGPU bool) ([]string, error) {
	name, err := libraryName()
	if err != nil {
		return nil, err
	}
	var c []string
	if env := os.Getenv(LibraryEnv); env != "" {
		c = append(c, env)
	}
	if useGPU {
		c = append(c, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	c = append(c,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)
	if cwd, err := os.Getwd(); err == nil {
		if useGPU {
			c = append(c, filepath.Join(cwd, "onnxruntime", "gpu", "lib", name))
		}
		c = append(c, filepath.Join(cwd, "onnxruntime", "lib", name))
	}
	return c, nil
}

// SetONNXLibraryPath points the runtime at the first shared library found.
func SetONNXLibraryPath(useGPU bool) error {
	candidates, err := libraryCandidates(useGPU)
	if err != nil {
		return err
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			ort.SetSharedLibraryPath(p)
			return nil
		}
	}
	return errors.New("ONNX Runtime library not found; set " + LibraryEnv)
}
