package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/rapidocr-go/internal/batch"
	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
	"github.com/MeKo-Tech/rapidocr-go/internal/metrics"
	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
	"github.com/MeKo-Tech/rapidocr-go/internal/visualize"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
)

// fileResult pairs a result with the file it came from.
type fileResult struct {
	File string                `json:"file" yaml:"file"`
	OCR  *pipeline.ImageResult `json:"ocr" yaml:"ocr"`
}

type imageFlags struct {
	recursive bool
	progress  bool
	include   []string
	exclude   []string
}

func newImageCommand(a *app) *cobra.Command {
	var flags imageFlags
	cmd := &cobra.Command{
		Use:   "image <files or directories...>",
		Short: "Process images for OCR text detection and recognition",
		Long: `Process one or more image files to extract text using OCR. Directories
are expanded to the supported images they contain.

Supported formats: JPEG, PNG, BMP, GIF, TIFF, WebP

Examples:
  rapidocr image photo.jpg
  rapidocr image scans/ --recursive --format json
  rapidocr image page.png --word-box --overlay out/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImage(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.StringP("format", "f", outputFormatText, "output format: text, json or yaml")
	bindKey(f, "format", "output.format")
	f.StringP("output", "o", "", "write results to this file instead of stdout")
	bindKey(f, "output", "output.file")
	f.String("overlay", "", "write <name>_overlay.png visualizations to this directory")
	bindKey(f, "overlay", "output.overlay_dir")
	f.IntP("workers", "w", 0, "parallel workers (default: number of CPUs)")
	bindKey(f, "workers", "engine.workers")
	f.BoolVarP(&flags.recursive, "recursive", "r", false, "descend into subdirectories")
	f.BoolVar(&flags.progress, "progress", false, "show a progress bar on stderr")
	f.StringSliceVar(&flags.include, "include", nil, "only process files matching these globs")
	f.StringSliceVar(&flags.exclude, "exclude", nil, "skip files matching these globs")
	addPipelineFlags(f)
	return cmd
}

func (a *app) runImage(cmd *cobra.Command, args []string, flags imageFlags) error {
	cfg := a.cfg
	files, err := batch.Discover(args, batch.DiscoverOptions{
		Recursive: flags.recursive,
		Include:   flags.include,
		Exclude:   flags.exclude,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no supported images found")
	}

	images := make([]image.Image, len(files))
	for i, path := range files {
		img, _, err := imageio.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		images[i] = img
	}

	eng, err := openEngine(a)
	if err != nil {
		return err
	}
	defer closeEngine(eng)

	pc := a.cfg.ToPipelineConfig().Parallel
	if flags.progress {
		pc.ProgressCallback = pipeline.NewConsoleProgress(cmd.ErrOrStderr())
	} else {
		pc.ProgressCallback = pipeline.NewLogProgress(slog.Default(), slog.LevelDebug)
	}
	pc.ErrorHandler = func(i int, _ image.Image, err error) {
		slog.Error("OCR failed", "file", files[i], "error", err)
	}

	results, procErr := eng.ProcessImages(cmd.Context(), images, pc)

	done := make([]fileResult, 0, len(results))
	for i, res := range results {
		if res == nil {
			metrics.OCRRequestsTotal.WithLabelValues("cli", "error").Inc()
			continue
		}
		metrics.OCRRequestsTotal.WithLabelValues("cli", "success").Inc()
		done = append(done, fileResult{File: files[i], OCR: res})

		if cfg.Output.OverlayDir != "" {
			path, err := visualize.SaveOverlay(cfg.Output.OverlayDir, files[i], images[i], res, visualize.DefaultOptions())
			if err != nil {
				return err
			}
			slog.Info("Saved overlay", "path", path)
		}
	}

	if len(done) > 0 {
		out, err := formatResults(cfg.Output.Format, done)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd, cfg.Output.File, out); err != nil {
			return err
		}
	}
	if procErr != nil {
		return fmt.Errorf("OCR failed: %w", procErr)
	}
	return nil
}

// formatResults renders results; json and yaml emit a single object for one
// file and a list otherwise.
func formatResults(format string, results []fileResult) (string, error) {
	var v any = results
	if len(results) == 1 {
		v = results[0]
	}

	switch format {
	case outputFormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(b) + "\n", nil
	case outputFormatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return string(b), nil
	case outputFormatText, "":
		var sb strings.Builder
		for _, r := range results {
			text, err := pipeline.ToPlainText(r.OCR)
			if err != nil {
				return "", err
			}
			if len(results) > 1 {
				fmt.Fprintf(&sb, "== %s ==\n", r.File)
			}
			if text != "" {
				sb.WriteString(text)
				sb.WriteByte('\n')
			}
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", format)
	}
}

func writeOutput(cmd *cobra.Command, file, out string) error {
	if file == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(file, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("Results written", "path", file)
	return nil
}
