package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/rapidocr-go/internal/classifier"
	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/crop"
	"github.com/MeKo-Tech/rapidocr-go/internal/detector"
	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/metrics"
	"github.com/MeKo-Tech/rapidocr-go/internal/recognizer"
	"github.com/MeKo-Tech/rapidocr-go/internal/transform"
	"github.com/MeKo-Tech/rapidocr-go/internal/wordbox"
)

// line carries one text line through the stages, in preprocessed-image
// coordinates until the final mapping.
type line struct {
	region  detector.ScoredRegion
	crop    image.Image
	rotated bool // crop turned a quarter for vertical text
	cls     *classifier.Result
	rec     *recognizer.Line
	words   []wordbox.Box
}

// ProcessImage runs the configured OCR pass over img.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*ImageResult, error) {
	return p.ProcessImageWithOptions(ctx, img, p.cfg.Options)
}

// ProcessImageWithOptions runs one OCR pass with per-call options. Stages
// that are enabled in opts but have no component in the pipeline are
// skipped.
func (p *Pipeline) ProcessImageWithOptions(ctx context.Context, img image.Image, opts Options) (*ImageResult, error) {
	if img == nil {
		return nil, common.ErrNilImage
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	useDet := opts.UseDet && p.Detector != nil
	useCls := opts.UseCls && p.Classifier != nil
	useRec := opts.UseRec && p.Recognizer != nil

	sw := common.NewStopwatch()

	work, rec, err := transform.Resize(img, opts.Preprocess)
	if err != nil {
		return nil, err
	}
	if useDet {
		work = transform.Letterbox(work, opts.Preprocess, rec)
	}
	raw := rec.RawSize()
	slog.Debug("preprocessed image",
		"raw", fmt.Sprintf("%dx%d", raw.X, raw.Y),
		"work", fmt.Sprintf("%dx%d", work.Bounds().Dx(), work.Bounds().Dy()),
		"record", fmt.Sprint(rec.Entries()))
	sw.Skip()

	lines, err := p.detect(ctx, work, useDet)
	if err != nil {
		return nil, err
	}
	if useDet {
		metrics.ObserveStage(metrics.StageDetection, sw.Lap(metrics.StageDetection))
	}

	if useCls && len(lines) > 0 {
		if err := p.classify(ctx, lines); err != nil {
			return nil, err
		}
		metrics.ObserveStage(metrics.StageClassification, sw.Lap(metrics.StageClassification))
	}

	if useRec && len(lines) > 0 {
		if err := p.recognize(ctx, lines, opts.ReturnWordBox && useDet); err != nil {
			return nil, err
		}
		metrics.ObserveStage(metrics.StageRecognition, sw.Lap(metrics.StageRecognition))
	}

	res := assemble(lines, rec, opts.TextScore, useDet, useRec)
	res.Width, res.Height = raw.X, raw.Y
	total := sw.Total()
	res.Processing = Processing{
		DetectionNs:      sw.Get(metrics.StageDetection).Nanoseconds(),
		ClassificationNs: sw.Get(metrics.StageClassification).Nanoseconds(),
		RecognitionNs:    sw.Get(metrics.StageRecognition).Nanoseconds(),
		TotalNs:          total.Nanoseconds(),
	}
	metrics.ObserveStage(metrics.StageTotal, total)
	metrics.LinesDetected.Observe(float64(len(res.Lines)))
	metrics.TextLength.Observe(float64(utf8.RuneCountInString(res.Text)))
	if opts.ReturnWordBox {
		metrics.WordBoxes.Observe(float64(res.WordCount()))
	}

	slog.Debug("image processed", "lines", len(res.Lines), "timings", sw.String())
	return res, nil
}

// detect finds and crops the text lines of img. Without detection the whole
// image is one line.
func (p *Pipeline) detect(ctx context.Context, img *image.NRGBA, useDet bool) ([]*line, error) {
	if !useDet {
		b := img.Bounds()
		return []*line{{
			region: detector.ScoredRegion{Quad: geometry.RectQuad(0, 0, float64(b.Dx()), float64(b.Dy()))},
			crop:   img,
		}}, nil
	}

	det, err := p.Detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	regions := detector.SortRegions(det.Regions)

	lines := make([]*line, 0, len(regions))
	for i, r := range regions {
		c, err := crop.Quad(img, r.Quad)
		if err != nil {
			slog.Debug("skipping region", "index", i, "error", err)
			continue
		}
		lines = append(lines, &line{region: r, crop: c.Image, rotated: c.Rotated})
	}
	return lines, nil
}

func (p *Pipeline) classify(ctx context.Context, lines []*line) error {
	crops := make([]image.Image, len(lines))
	for i, l := range lines {
		crops[i] = l.crop
	}
	turned, results, err := p.Classifier.Classify(ctx, crops)
	if err != nil {
		return err
	}
	for i, l := range lines {
		l.crop = turned[i]
		l.cls = &results[i]
	}
	return nil
}

func (p *Pipeline) recognize(ctx context.Context, lines []*line, wordBox bool) error {
	crops := make([]image.Image, len(lines))
	for i, l := range lines {
		crops[i] = l.crop
	}
	decoded, err := p.Recognizer.Recognize(ctx, crops, wordBox)
	if err != nil {
		return err
	}
	for i, l := range lines {
		l.rec = &decoded[i]
		if !wordBox {
			continue
		}
		frame := wordbox.Frame{
			Size:     l.crop.Bounds().Size(),
			Vertical: l.rotated,
			Flipped:  l.cls != nil && l.cls.Rotated,
		}
		words, err := wordbox.Reconstruct(decoded[i], l.region.Quad, frame)
		if err != nil {
			slog.Debug("word boxes unavailable", "line", i, "error", err)
			continue
		}
		l.words = words
	}
	return nil
}

// assemble maps every line back to raw-image pixels and drops recognized
// lines below textScore.
func assemble(lines []*line, rec *transform.Record, textScore float64, useDet, useRec bool) *ImageResult {
	kept := make([]*line, 0, len(lines))
	for _, l := range lines {
		if useRec && (l.rec == nil || l.rec.Confidence < textScore) {
			continue
		}
		kept = append(kept, l)
	}

	var quads []geometry.Quad
	if useDet {
		regions := make([]geometry.Quad, len(kept))
		for i, l := range kept {
			regions[i] = l.region.Quad
		}
		quads = rec.Quads(regions)
	}

	res := &ImageResult{Lines: make([]LineResult, 0, len(kept))}
	texts := make([]string, 0, len(kept))
	for i, l := range kept {
		var lr LineResult
		if useDet {
			q := quads[i]
			lr.Quad = q
			lr.Polygon = polygonOf(q)
			lr.Box = boxOf(q)
			lr.DetConfidence = l.region.Score
		}
		if l.cls != nil {
			lr.Label = l.cls.Label
			lr.ClsScore = l.cls.Score
			lr.Rotated = l.cls.Rotated
		}
		if l.rec != nil {
			lr.Text = l.rec.Text
			lr.Confidence = l.rec.Confidence
			texts = append(texts, l.rec.Text)
		}
		if len(l.words) > 0 {
			wq := make([]geometry.Quad, len(l.words))
			for j, w := range l.words {
				wq[j] = w.Quad
			}
			for j, q := range rec.Quads(wq) {
				lr.Words = append(lr.Words, WordResult{
					Text:       l.words[j].Text,
					Confidence: l.words[j].Confidence,
					Polygon:    polygonOf(q),
					Quad:       q,
				})
			}
		}
		res.Lines = append(res.Lines, lr)
	}
	res.Text = strings.Join(texts, "\n")
	return res
}

// WordCount returns the number of word boxes over all lines.
func (r *ImageResult) WordCount() int {
	n := 0
	for _, l := range r.Lines {
		n += len(l.Words)
	}
	return n
}
