// Package cmd implements the rapidocr command line.
package cmd

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/rapidocr-go/internal/config"
	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
	"github.com/MeKo-Tech/rapidocr-go/internal/server"
	"github.com/MeKo-Tech/rapidocr-go/internal/version"
)

// configKey annotates a flag with the config key it overrides.
const configKey = "rapidocr_config_key"

// Engine is what the commands need from *pipeline.Pipeline.
type Engine interface {
	server.Processor
	ProcessImages(ctx context.Context, images []image.Image, cfg pipeline.ParallelConfig) ([]*pipeline.ImageResult, error)
}

func buildPipeline(cfg pipeline.Config) (Engine, error) {
	p, err := pipeline.NewBuilderFromConfig(cfg).Build()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v         *viper.Viper
	cfgFile   string
	cfg       *config.Config
	newEngine func(pipeline.Config) (Engine, error)
}

// NewRootCommand returns the rapidocr command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{v: viper.New(), newEngine: buildPipeline})
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rapidocr",
		Short: "OCR pipeline for text detection and recognition",
		Long: `rapidocr runs ONNX text detection, angle classification and recognition
models and turns their raw outputs into text lines and word boxes in the
coordinates of the original image.

Examples:
  rapidocr image scan.png
  rapidocr image pages/ --format json --word-box
  rapidocr serve --port 8080`,
		Version:           version.String(),
		SilenceUsage:      true,
		PersistentPreRunE: a.preRun,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is rapidocr.yaml in ., $XDG_CONFIG_HOME/rapidocr, /etc/rapidocr)")
	f.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	bindKey(f, "verbose", "verbose")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	bindKey(f, "log-level", "log_level")
	f.String("log-format", "json", "log format (json, text)")
	bindKey(f, "log-format", "log_format")

	root.AddCommand(
		newImageCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

func bindKey(f *pflag.FlagSet, flag, key string) {
	if err := f.SetAnnotation(flag, configKey, []string{key}); err != nil {
		panic(err)
	}
}

// preRun binds the annotated flags of the running command, loads the
// configuration and installs the logger.
func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(fl *pflag.Flag) {
		if keys := fl.Annotations[configKey]; len(keys) == 1 && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], fl)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	loader := config.NewLoaderWith(a.v)
	cfg, err := loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
	if used := loader.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
	}
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.ToYAML()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// skip config loading
		PersistentPreRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "rapidocr", version.String())
			return err
		},
	}
}

// addPipelineFlags registers the model and postprocessing flags shared by
// image and serve.
func addPipelineFlags(f *pflag.FlagSet) {
	f.String("det-model", "", "detection model path")
	bindKey(f, "det-model", "det.model_path")
	f.String("cls-model", "", "angle classification model path")
	bindKey(f, "cls-model", "cls.model_path")
	f.String("rec-model", "", "recognition model path")
	bindKey(f, "rec-model", "rec.model_path")
	f.String("dict", "", "recognizer dictionary (one glyph per line)")
	bindKey(f, "dict", "rec.dict_path")
	f.String("models-dir", "", "directory holding the default models, used for unset model paths")
	bindKey(f, "models-dir", "engine.models_dir")
	f.String("ort-lib", "", "onnxruntime shared library path")
	bindKey(f, "ort-lib", "engine.library_path")
	f.Int("threads", 0, "intra-op threads per model (0 = runtime default)")
	bindKey(f, "threads", "engine.num_threads")
	f.Bool("gpu", false, "run models on CUDA")
	bindKey(f, "gpu", "engine.use_gpu")

	f.Bool("word-box", false, "return word and glyph boxes")
	bindKey(f, "word-box", "global.return_word_box")
	f.Bool("use-cls", true, "classify line orientation and rotate upside-down lines")
	bindKey(f, "use-cls", "global.use_cls")
	f.Float64("text-score", 0.5, "drop lines recognized with lower confidence")
	bindKey(f, "text-score", "global.text_score")
	f.Float64("thresh", 0.3, "probability map binarization threshold")
	bindKey(f, "thresh", "det.thresh")
	f.Float64("box-thresh", 0.5, "minimum region score")
	bindKey(f, "box-thresh", "det.box_thresh")
	f.Float64("unclip-ratio", 1.6, "region expansion ratio")
	bindKey(f, "unclip-ratio", "det.unclip_ratio")
}

func openEngine(a *app) (Engine, error) {
	eng, err := a.newEngine(a.cfg.ToPipelineConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR pipeline: %w", err)
	}
	return eng, nil
}

func closeEngine(eng Engine) {
	if err := eng.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
	}
}
