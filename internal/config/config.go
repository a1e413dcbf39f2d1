package config

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/rapidocr-go/internal/classifier"
	"github.com/MeKo-Tech/rapidocr-go/internal/detector"
	"github.com/MeKo-Tech/rapidocr-go/internal/models"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
	"github.com/MeKo-Tech/rapidocr-go/internal/recognizer"
	"github.com/MeKo-Tech/rapidocr-go/internal/transform"
)

// Config represents the complete configuration of the rapidocr application.
// It is loaded from a configuration file, RAPIDOCR_* environment variables
// and command-line flags, in increasing order of precedence.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Global GlobalConfig `mapstructure:"global" yaml:"global" json:"global"`
	Det    DetConfig    `mapstructure:"det" yaml:"det" json:"det"`
	Cls    ClsConfig    `mapstructure:"cls" yaml:"cls" json:"cls"`
	Rec    RecConfig    `mapstructure:"rec" yaml:"rec" json:"rec"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// GlobalConfig selects pipeline stages and the image preprocessing limits.
type GlobalConfig struct {
	UseDet           bool    `mapstructure:"use_det" yaml:"use_det" json:"use_det"`
	UseCls           bool    `mapstructure:"use_cls" yaml:"use_cls" json:"use_cls"`
	UseRec           bool    `mapstructure:"use_rec" yaml:"use_rec" json:"use_rec"`
	ReturnWordBox    bool    `mapstructure:"return_word_box" yaml:"return_word_box" json:"return_word_box"`
	TextScore        float64 `mapstructure:"text_score" yaml:"text_score" json:"text_score"`
	MinHeight        int     `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
	WidthHeightRatio float64 `mapstructure:"width_height_ratio" yaml:"width_height_ratio" json:"width_height_ratio"`
	MaxSideLen       int     `mapstructure:"max_side_len" yaml:"max_side_len" json:"max_side_len"`
	MinSideLen       int     `mapstructure:"min_side_len" yaml:"min_side_len" json:"min_side_len"`
}

// DetConfig contains text detection settings.
type DetConfig struct {
	ModelPath     string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LimitType     string  `mapstructure:"limit_type" yaml:"limit_type" json:"limit_type"`
	LimitSideLen  int     `mapstructure:"limit_side_len" yaml:"limit_side_len" json:"limit_side_len"`
	Thresh        float64 `mapstructure:"thresh" yaml:"thresh" json:"thresh"`
	BoxThresh     float64 `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	MaxCandidates int     `mapstructure:"max_candidates" yaml:"max_candidates" json:"max_candidates"`
	UnclipRatio   float64 `mapstructure:"unclip_ratio" yaml:"unclip_ratio" json:"unclip_ratio"`
	UseDilation   bool    `mapstructure:"use_dilation" yaml:"use_dilation" json:"use_dilation"`
	ScoreMode     string  `mapstructure:"score_mode" yaml:"score_mode" json:"score_mode"`
}

// ClsConfig contains text-line angle classifier settings.
type ClsConfig struct {
	ModelPath   string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	ImageHeight int      `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	ImageWidth  int      `mapstructure:"image_width" yaml:"image_width" json:"image_width"`
	BatchNum    int      `mapstructure:"batch_num" yaml:"batch_num" json:"batch_num"`
	Thresh      float64  `mapstructure:"thresh" yaml:"thresh" json:"thresh"`
	LabelList   []string `mapstructure:"label_list" yaml:"label_list" json:"label_list"`
}

// RecConfig contains text recognition settings.
type RecConfig struct {
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath    string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	ImageWidth  int    `mapstructure:"image_width" yaml:"image_width" json:"image_width"`
	BatchNum    int    `mapstructure:"batch_num" yaml:"batch_num" json:"batch_num"`
	CleanText   bool   `mapstructure:"clean_text" yaml:"clean_text" json:"clean_text"`
}

// EngineConfig contains ONNX Runtime settings shared by all models.
type EngineConfig struct {
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	ModelsDir   string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	NumThreads  int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Workers     int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	UseGPU      bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	DeviceID    int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits for the server. Zero
// disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// DefaultConfig returns a configuration with the reference defaults.
func DefaultConfig() Config {
	pre := transform.DefaultOptions()
	det := detector.DefaultConfig()
	cls := classifier.DefaultConfig()
	rec := recognizer.DefaultConfig()
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Global: GlobalConfig{
			UseDet:           true,
			UseCls:           true,
			UseRec:           true,
			TextScore:        0.5,
			MinHeight:        pre.MinHeight,
			WidthHeightRatio: pre.WidthHeightRatio,
			MaxSideLen:       pre.MaxSideLen,
			MinSideLen:       pre.MinSideLen,
		},
		Det: DetConfig{
			LimitType:     string(det.LimitType),
			LimitSideLen:  det.LimitSideLen,
			Thresh:        float64(det.PostProcess.Thresh),
			BoxThresh:     det.PostProcess.BoxThresh,
			MaxCandidates: det.PostProcess.MaxCandidates,
			UnclipRatio:   det.PostProcess.UnclipRatio,
			UseDilation:   det.PostProcess.UseDilation,
			ScoreMode:     det.PostProcess.ScoreMode.String(),
		},
		Cls: ClsConfig{
			ImageHeight: cls.ImageHeight,
			ImageWidth:  cls.ImageWidth,
			BatchNum:    cls.BatchSize,
			Thresh:      cls.Thresh,
			LabelList:   cls.Labels,
		},
		Rec: RecConfig{
			ImageHeight: rec.ImageHeight,
			ImageWidth:  rec.ImageWidth,
			BatchNum:    rec.BatchSize,
		},
		Engine: EngineConfig{
			Workers:     pipeline.DefaultParallelConfig().MaxWorkers,
			MemoryLimit: "auto",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDay:     100 << 20,
			},
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"json", "text"}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	validFormats := []string{"text", "json", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"global.text_score", c.Global.TextScore},
		{"det.thresh", c.Det.Thresh},
		{"det.box_thresh", c.Det.BoxThresh},
		{"cls.thresh", c.Cls.Thresh},
	}
	for _, th := range thresholds {
		if err := validateThreshold(th.value, th.name); err != nil {
			return err
		}
	}

	positives := []struct {
		name  string
		value int
	}{
		{"det.limit_side_len", c.Det.LimitSideLen},
		{"det.max_candidates", c.Det.MaxCandidates},
		{"cls.image_height", c.Cls.ImageHeight},
		{"cls.image_width", c.Cls.ImageWidth},
		{"cls.batch_num", c.Cls.BatchNum},
		{"rec.image_height", c.Rec.ImageHeight},
		{"rec.image_width", c.Rec.ImageWidth},
		{"rec.batch_num", c.Rec.BatchNum},
		{"engine.workers", c.Engine.Workers},
		{"server.max_upload_mb", c.Server.MaxUploadMB},
		{"server.timeout_sec", c.Server.TimeoutSec},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("invalid %s: %d (must be positive)", p.name, p.value)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if rl := c.Server.RateLimit; rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		return fmt.Errorf("invalid server.rate_limit: limits must not be negative")
	}
	if c.Det.UnclipRatio <= 0 {
		return fmt.Errorf("invalid det.unclip_ratio: %v (must be positive)", c.Det.UnclipRatio)
	}
	if len(c.Cls.LabelList) == 0 {
		return fmt.Errorf("invalid cls.label_list: must not be empty")
	}

	if _, err := detector.ParseLimitType(c.Det.LimitType); err != nil {
		return fmt.Errorf("invalid det.limit_type: %w", err)
	}
	if _, err := detector.ParseScoreMode(c.Det.ScoreMode); err != nil {
		return fmt.Errorf("invalid det.score_mode: %w", err)
	}
	if err := c.preprocessOptions().Validate(); err != nil {
		return fmt.Errorf("invalid global preprocessing: %w", err)
	}
	if _, err := parseMemoryLimit(c.Engine.MemoryLimit); err != nil {
		return fmt.Errorf("invalid engine.memory_limit: %w", err)
	}
	return nil
}

func (c *Config) preprocessOptions() transform.Options {
	return transform.Options{
		MaxSideLen:       c.Global.MaxSideLen,
		MinSideLen:       c.Global.MinSideLen,
		MinHeight:        c.Global.MinHeight,
		WidthHeightRatio: c.Global.WidthHeightRatio,
	}
}

// withDefaultModels fills the empty paths of m from defaults.
func withDefaultModels(m pipeline.ModelPaths, defaults models.Paths) pipeline.ModelPaths {
	if m.Detector == "" {
		m.Detector = defaults.Detector
	}
	if m.Classifier == "" {
		m.Classifier = defaults.Classifier
	}
	if m.Recognizer == "" {
		m.Recognizer = defaults.Recognizer
	}
	if m.Dictionary == "" {
		m.Dictionary = defaults.Dictionary
	}
	return m
}

// ToPipelineConfig converts the config to the pipeline configuration. The
// config is expected to be valid.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Options = pipeline.Options{
		UseDet:        c.Global.UseDet,
		UseCls:        c.Global.UseCls,
		UseRec:        c.Global.UseRec,
		ReturnWordBox: c.Global.ReturnWordBox,
		TextScore:     c.Global.TextScore,
		Preprocess:    c.preprocessOptions(),
	}
	cfg.Models = pipeline.ModelPaths{
		Detector:   c.Det.ModelPath,
		Classifier: c.Cls.ModelPath,
		Recognizer: c.Rec.ModelPath,
		Dictionary: c.Rec.DictPath,
	}
	if c.Engine.ModelsDir != "" {
		cfg.Models = withDefaultModels(cfg.Models, models.Resolve(c.Engine.ModelsDir))
	}

	if lt, err := detector.ParseLimitType(c.Det.LimitType); err == nil {
		cfg.Detector.LimitType = lt
	}
	cfg.Detector.LimitSideLen = c.Det.LimitSideLen
	cfg.Detector.PostProcess.Thresh = float32(c.Det.Thresh)
	cfg.Detector.PostProcess.BoxThresh = c.Det.BoxThresh
	cfg.Detector.PostProcess.MaxCandidates = c.Det.MaxCandidates
	cfg.Detector.PostProcess.UnclipRatio = c.Det.UnclipRatio
	cfg.Detector.PostProcess.UseDilation = c.Det.UseDilation
	if sm, err := detector.ParseScoreMode(c.Det.ScoreMode); err == nil {
		cfg.Detector.PostProcess.ScoreMode = sm
	}

	cfg.Classifier.ImageHeight = c.Cls.ImageHeight
	cfg.Classifier.ImageWidth = c.Cls.ImageWidth
	cfg.Classifier.BatchSize = c.Cls.BatchNum
	cfg.Classifier.Thresh = c.Cls.Thresh
	cfg.Classifier.Labels = slices.Clone(c.Cls.LabelList)

	cfg.Recognizer.ImageHeight = c.Rec.ImageHeight
	cfg.Recognizer.ImageWidth = c.Rec.ImageWidth
	cfg.Recognizer.BatchSize = c.Rec.BatchNum
	if c.Rec.CleanText {
		clean := recognizer.DefaultCleanOptions()
		cfg.Recognizer.Clean = &clean
	}

	cfg.LibraryPath = c.Engine.LibraryPath
	cfg.NumThreads = c.Engine.NumThreads
	cfg.GPU = onnx.DefaultGPUConfig()
	cfg.GPU.UseGPU = c.Engine.UseGPU
	cfg.GPU.DeviceID = c.Engine.DeviceID
	if limit, err := parseMemoryLimit(c.Engine.MemoryLimit); err == nil {
		cfg.GPU.GPUMemLimit = limit
	}
	cfg.Parallel.MaxWorkers = c.Engine.Workers
	return cfg
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses a GPU memory limit such as "512MB" or "1.5GB".
// "auto" and "" mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix string
		scale  float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.scale), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
