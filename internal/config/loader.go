package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "rapidocr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "RAPIDOCR"

	// DotEnvFile is read from the working directory before the environment.
	DotEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound with viper.BindPFlag take part.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the configuration from the search paths, the environment and
// the defaults, then validates it. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	for _, p := range SearchPaths() {
		l.v.AddConfigPath(p)
	}
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.decode()
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.prepare()
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.decode()
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) prepare() {
	loadDotEnv(DotEnvFile)
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	l.setDefaults()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv exports the variables of path that are not already set.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Warn("cannot read env file", "path", path, "error", err)
	}
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("log_format", d.LogFormat)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("global.use_det", d.Global.UseDet)
	l.v.SetDefault("global.use_cls", d.Global.UseCls)
	l.v.SetDefault("global.use_rec", d.Global.UseRec)
	l.v.SetDefault("global.return_word_box", d.Global.ReturnWordBox)
	l.v.SetDefault("global.text_score", d.Global.TextScore)
	l.v.SetDefault("global.min_height", d.Global.MinHeight)
	l.v.SetDefault("global.width_height_ratio", d.Global.WidthHeightRatio)
	l.v.SetDefault("global.max_side_len", d.Global.MaxSideLen)
	l.v.SetDefault("global.min_side_len", d.Global.MinSideLen)

	l.v.SetDefault("det.model_path", d.Det.ModelPath)
	l.v.SetDefault("det.limit_type", d.Det.LimitType)
	l.v.SetDefault("det.limit_side_len", d.Det.LimitSideLen)
	l.v.SetDefault("det.thresh", d.Det.Thresh)
	l.v.SetDefault("det.box_thresh", d.Det.BoxThresh)
	l.v.SetDefault("det.max_candidates", d.Det.MaxCandidates)
	l.v.SetDefault("det.unclip_ratio", d.Det.UnclipRatio)
	l.v.SetDefault("det.use_dilation", d.Det.UseDilation)
	l.v.SetDefault("det.score_mode", d.Det.ScoreMode)

	l.v.SetDefault("cls.model_path", d.Cls.ModelPath)
	l.v.SetDefault("cls.image_height", d.Cls.ImageHeight)
	l.v.SetDefault("cls.image_width", d.Cls.ImageWidth)
	l.v.SetDefault("cls.batch_num", d.Cls.BatchNum)
	l.v.SetDefault("cls.thresh", d.Cls.Thresh)
	l.v.SetDefault("cls.label_list", d.Cls.LabelList)

	l.v.SetDefault("rec.model_path", d.Rec.ModelPath)
	l.v.SetDefault("rec.dict_path", d.Rec.DictPath)
	l.v.SetDefault("rec.image_height", d.Rec.ImageHeight)
	l.v.SetDefault("rec.image_width", d.Rec.ImageWidth)
	l.v.SetDefault("rec.batch_num", d.Rec.BatchNum)
	l.v.SetDefault("rec.clean_text", d.Rec.CleanText)

	l.v.SetDefault("engine.library_path", d.Engine.LibraryPath)
	l.v.SetDefault("engine.models_dir", d.Engine.ModelsDir)
	l.v.SetDefault("engine.num_threads", d.Engine.NumThreads)
	l.v.SetDefault("engine.workers", d.Engine.Workers)
	l.v.SetDefault("engine.use_gpu", d.Engine.UseGPU)
	l.v.SetDefault("engine.device_id", d.Engine.DeviceID)
	l.v.SetDefault("engine.memory_limit", d.Engine.MemoryLimit)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day", d.Server.RateLimit.MaxDataPerDay)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.overlay_dir", d.Output.OverlayDir)
}

// SearchPaths returns the directories searched for rapidocr.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(dir, "rapidocr"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rapidocr"))
	}
	return append(paths, "/etc/rapidocr")
}
