package config

import (
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/rapidocr-go/internal/detector"
	"github.com/MeKo-Tech/rapidocr-go/internal/models"
)

const infoLevel = "info"

// TestDefaultConfig verifies that DefaultConfig returns the reference values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log_level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if !cfg.Global.UseDet || !cfg.Global.UseCls || !cfg.Global.UseRec {
		t.Error("Expected every stage to be enabled by default")
	}
	if cfg.Global.ReturnWordBox {
		t.Error("Expected word boxes to be disabled by default")
	}
	if cfg.Global.TextScore != 0.5 {
		t.Errorf("Expected text_score 0.5, got %v", cfg.Global.TextScore)
	}
	if cfg.Global.MinHeight != 30 || cfg.Global.WidthHeightRatio != 8 {
		t.Errorf("Expected letterbox limits 30/8, got %d/%v", cfg.Global.MinHeight, cfg.Global.WidthHeightRatio)
	}
	if cfg.Global.MaxSideLen != 2000 || cfg.Global.MinSideLen != 30 {
		t.Errorf("Expected side limits 2000/30, got %d/%d", cfg.Global.MaxSideLen, cfg.Global.MinSideLen)
	}

	det := cfg.Det
	if det.Thresh < 0.299 || det.Thresh > 0.301 {
		t.Errorf("Expected det.thresh 0.3, got %v", det.Thresh)
	}
	if det.BoxThresh != 0.5 || det.UnclipRatio != 1.6 || det.MaxCandidates != 1000 {
		t.Errorf("Unexpected det defaults: %+v", det)
	}
	if det.LimitType != "min" || det.LimitSideLen != 736 || det.ScoreMode != "fast" || !det.UseDilation {
		t.Errorf("Unexpected det defaults: %+v", det)
	}

	if cfg.Cls.ImageHeight != 48 || cfg.Cls.ImageWidth != 192 || cfg.Cls.BatchNum != 6 || cfg.Cls.Thresh != 0.9 {
		t.Errorf("Unexpected cls defaults: %+v", cfg.Cls)
	}
	if strings.Join(cfg.Cls.LabelList, ",") != "0,180" {
		t.Errorf("Expected labels [0 180], got %v", cfg.Cls.LabelList)
	}
	if cfg.Rec.ImageHeight != 48 || cfg.Rec.ImageWidth != 320 || cfg.Rec.BatchNum != 6 {
		t.Errorf("Unexpected rec defaults: %+v", cfg.Rec)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Expected output format 'text', got %s", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"output format", func(c *Config) { c.Output.Format = "csv" }, "output format"},
		{"text score", func(c *Config) { c.Global.TextScore = 1.5 }, "global.text_score"},
		{"det thresh", func(c *Config) { c.Det.Thresh = -0.1 }, "det.thresh"},
		{"box thresh", func(c *Config) { c.Det.BoxThresh = 2 }, "det.box_thresh"},
		{"cls thresh", func(c *Config) { c.Cls.Thresh = 1.1 }, "cls.thresh"},
		{"limit side", func(c *Config) { c.Det.LimitSideLen = 0 }, "det.limit_side_len"},
		{"rec batch", func(c *Config) { c.Rec.BatchNum = 0 }, "rec.batch_num"},
		{"workers", func(c *Config) { c.Engine.Workers = -1 }, "engine.workers"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerHour = -1 }, "server.rate_limit"},
		{"unclip", func(c *Config) { c.Det.UnclipRatio = 0 }, "det.unclip_ratio"},
		{"labels", func(c *Config) { c.Cls.LabelList = nil }, "cls.label_list"},
		{"limit type", func(c *Config) { c.Det.LimitType = "both" }, "det.limit_type"},
		{"score mode", func(c *Config) { c.Det.ScoreMode = "exact" }, "det.score_mode"},
		{"ratio", func(c *Config) { c.Global.WidthHeightRatio = 0 }, "global preprocessing"},
		{"memory limit", func(c *Config) { c.Engine.MemoryLimit = "lots" }, "engine.memory_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error mentioning %q, got %v", tt.field, err)
			}
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"512MB", 512 << 20, false},
		{"1.5gb", 3 << 29, false},
		{"64KB", 64 << 10, false},
		{"100B", 100, false},
		{"12", 0, true},
		{"xMB", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMemoryLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMemoryLimit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMemoryLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.UseCls = false
	cfg.Global.ReturnWordBox = true
	cfg.Global.TextScore = 0.7
	cfg.Det.ModelPath = "det.onnx"
	cfg.Det.LimitType = "max"
	cfg.Det.ScoreMode = "slow"
	cfg.Det.UnclipRatio = 2
	cfg.Rec.ModelPath = "rec.onnx"
	cfg.Rec.DictPath = "keys.txt"
	cfg.Rec.CleanText = true
	cfg.Engine.UseGPU = true
	cfg.Engine.MemoryLimit = "1GB"
	cfg.Engine.Workers = 3

	pc := cfg.ToPipelineConfig()
	if pc.Options.UseCls || !pc.Options.UseDet || !pc.Options.ReturnWordBox || pc.Options.TextScore != 0.7 {
		t.Errorf("Unexpected options: %+v", pc.Options)
	}
	if pc.Models.Detector != "det.onnx" || pc.Models.Recognizer != "rec.onnx" || pc.Models.Dictionary != "keys.txt" {
		t.Errorf("Unexpected model paths: %+v", pc.Models)
	}
	if pc.Detector.LimitType != detector.LimitMax || pc.Detector.PostProcess.ScoreMode != detector.ScoreSlow {
		t.Errorf("Unexpected detector config: %+v", pc.Detector)
	}
	if pc.Detector.PostProcess.UnclipRatio != 2 {
		t.Errorf("Expected unclip ratio 2, got %v", pc.Detector.PostProcess.UnclipRatio)
	}
	if pc.Recognizer.Clean == nil {
		t.Error("Expected text cleaning to be enabled")
	}
	if !pc.GPU.UseGPU || pc.GPU.GPUMemLimit != 1<<30 {
		t.Errorf("Unexpected GPU config: %+v", pc.GPU)
	}
	if pc.Parallel.MaxWorkers != 3 {
		t.Errorf("Expected 3 workers, got %d", pc.Parallel.MaxWorkers)
	}
	if pc.Options.Preprocess.MaxSideLen != 2000 {
		t.Errorf("Expected max side 2000, got %d", pc.Options.Preprocess.MaxSideLen)
	}
}

func TestToPipelineConfigModelsDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Engine.ModelsDir = dir
	cfg.Rec.ModelPath = "custom_rec.onnx"

	pc := cfg.ToPipelineConfig()
	if pc.Models.Detector != filepath.Join(dir, models.Detection) {
		t.Errorf("Expected default detector under %s, got %s", dir, pc.Models.Detector)
	}
	if pc.Models.Classifier != filepath.Join(dir, models.Classification) {
		t.Errorf("Expected default classifier under %s, got %s", dir, pc.Models.Classifier)
	}
	if pc.Models.Recognizer != "custom_rec.onnx" {
		t.Errorf("Expected explicit recognizer path to win, got %s", pc.Models.Recognizer)
	}
	if pc.Models.Dictionary != "" {
		t.Errorf("Expected no dictionary, got %s", pc.Models.Dictionary)
	}
}

func TestToYAML(t *testing.T) {
	cfg := DefaultConfig()
	out, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML() error: %v", err)
	}
	if !strings.Contains(out, "text_score: 0.5") {
		t.Errorf("Expected text_score in output:\n%s", out)
	}

	var back Config
	if err := yaml.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}
	if back.Det.UnclipRatio != cfg.Det.UnclipRatio || back.Server.Port != cfg.Server.Port {
		t.Errorf("Round trip mismatch: %+v", back)
	}
}
