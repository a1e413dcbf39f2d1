package transform

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
)

// Options controls the preprocessing stages.
type Options struct {
	MaxSideLen int // larger images are shrunk so the longer side fits
	MinSideLen int // smaller images are grown so the shorter side fits
	MinHeight  int // images this short or shorter are letterboxed
	// WidthHeightRatio letterboxes images wider than this ratio; a negative
	// value disables the check.
	WidthHeightRatio float64
}

// DefaultOptions returns the reference preprocessing limits.
func DefaultOptions() Options {
	return Options{
		MaxSideLen:       2000,
		MinSideLen:       30,
		MinHeight:        30,
		WidthHeightRatio: 8,
	}
}

// Validate checks the limits.
func (o Options) Validate() error {
	if o.MaxSideLen <= 0 || o.MinSideLen <= 0 {
		return fmt.Errorf("side limits must be positive, got max=%d min=%d", o.MaxSideLen, o.MinSideLen)
	}
	if o.MinSideLen > o.MaxSideLen {
		return fmt.Errorf("min side %d exceeds max side %d", o.MinSideLen, o.MaxSideLen)
	}
	if o.MinHeight < 0 {
		return fmt.Errorf("min height must be non-negative, got %d", o.MinHeight)
	}
	if o.WidthHeightRatio == 0 {
		return errors.New("width/height ratio must be positive or negative to disable")
	}
	return nil
}

// errResize marks a stage that would produce an empty image.
var errResize = errors.New("resize to empty image")

// Resize shrinks img when its longer side exceeds MaxSideLen and then grows
// it when its shorter side is below MinSideLen, snapping both dimensions to
// multiples of 32. It starts a new record and appends one Scale entry for
// each stage that ran; a stage that would empty the image is skipped.
func Resize(img image.Image, opts Options) (*image.NRGBA, *Record, error) {
	if img == nil {
		return nil, nil, common.ErrNilImage
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, nil, fmt.Errorf("%w: empty image", common.ErrInvalidShape)
	}
	rec := NewRecord(b.Size())
	out := imaging.Clone(img)

	if max(b.Dx(), b.Dy()) > opts.MaxSideLen {
		if next, rh, rw, err := resizeBySide(out, float64(opts.MaxSideLen)/float64(max(b.Dx(), b.Dy()))); err == nil {
			out = next
			rec.Append(Scale{RatioH: rh, RatioW: rw})
		} else {
			slog.Debug("max side shrink skipped", "error", err)
		}
	}

	s := out.Bounds().Size()
	if min(s.X, s.Y) < opts.MinSideLen {
		if next, rh, rw, err := resizeBySide(out, float64(opts.MinSideLen)/float64(min(s.X, s.Y))); err == nil {
			out = next
			rec.Append(Scale{RatioH: rh, RatioW: rw})
		} else {
			slog.Debug("min side grow skipped", "error", err)
		}
	}

	return out, rec, nil
}

// resizeBySide scales img by ratio, snaps to multiples of 32 and returns the
// input/output size ratios.
func resizeBySide(img *image.NRGBA, ratio float64) (*image.NRGBA, float64, float64, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	rw := snap32(int(float64(w) * ratio))
	rh := snap32(int(float64(h) * ratio))
	if rw <= 0 || rh <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d scaled by %.4f", errResize, w, h, ratio)
	}
	out := imaging.Resize(img, rw, rh, imaging.Linear)
	return out, float64(h) / float64(rh), float64(w) / float64(rw), nil
}

func snap32(v int) int {
	return int(math.Round(float64(v)/32) * 32)
}

// Letterbox pads short or very wide images with black rows above and below
// so the detector sees enough height. A Padding entry is always appended,
// zero when no border was added.
func Letterbox(img *image.NRGBA, opts Options, rec *Record) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	limitRatio := opts.WidthHeightRatio > 0
	if h > opts.MinHeight && (!limitRatio || float64(w)/float64(h) <= opts.WidthHeightRatio) {
		rec.Append(Padding{})
		return img
	}

	pad := letterboxPadding(w, h, opts)
	out := imaging.New(w, h+2*pad, color.Black)
	out = imaging.Paste(out, img, image.Pt(0, pad))
	rec.Append(Padding{Top: pad})
	return out
}

// letterboxPadding is the border height on each side: half the distance to
// twice the target height, where the target is the taller of w/ratio and
// MinHeight.
func letterboxPadding(w, h int, opts Options) int {
	target := float64(opts.MinHeight)
	if opts.WidthHeightRatio > 0 {
		target = math.Max(float64(w)/opts.WidthHeightRatio, target)
	}
	newH := int(target) * 2
	return absInt(newH-h) / 2
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
