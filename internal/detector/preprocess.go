package detector

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
	"github.com/MeKo-Tech/rapidocr-go/internal/mempool"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// LimitType chooses which image side limitSideLen constrains.
type LimitType string

const (
	LimitMin LimitType = "min" // grow until the short side reaches the limit
	LimitMax LimitType = "max" // shrink until the long side fits the limit
)

// ParseLimitType validates a limit type string.
func ParseLimitType(s string) (LimitType, error) {
	switch LimitType(strings.ToLower(s)) {
	case LimitMin:
		return LimitMin, nil
	case LimitMax:
		return LimitMax, nil
	}
	return "", fmt.Errorf("unknown limit type %q", s)
}

// effectiveLimit returns the side limit for an image whose long side is
// maxSide. In max mode the limit steps with the image size.
func effectiveLimit(lt LimitType, limitSideLen, maxSide int) int {
	if lt == LimitMin {
		return limitSideLen
	}
	switch {
	case maxSide < 960:
		return 960
	case maxSide < 1500:
		return 1500
	default:
		return 2000
	}
}

// inputSize computes the network input size for a w×h image. Each side is
// rounded to the nearest multiple of 32 and never below 32.
func inputSize(lt LimitType, limit, w, h int) (int, int) {
	ratio := 1.0
	if lt == LimitMax {
		if max(w, h) > limit {
			if h > w {
				ratio = float64(limit) / float64(h)
			} else {
				ratio = float64(limit) / float64(w)
			}
		}
	} else if min(w, h) < limit {
		if h < w {
			ratio = float64(limit) / float64(h)
		} else {
			ratio = float64(limit) / float64(w)
		}
	}
	rw := int(float64(w) * ratio)
	rh := int(float64(h) * ratio)
	return roundTo32(rw), roundTo32(rh)
}

func roundTo32(v int) int {
	r := int(math.RoundToEven(float64(v)/32)) * 32
	return max(r, 32)
}

// preprocess resizes img for the detector and returns a pooled NCHW tensor.
// The caller releases tensor.Data with mempool.PutFloat32.
func preprocess(img image.Image, lt LimitType, limitSideLen int) (onnx.Tensor, error) {
	if img == nil {
		return onnx.Tensor{}, common.ErrNilImage
	}
	b := img.Bounds()
	if b.Empty() {
		return onnx.Tensor{}, fmt.Errorf("%w: empty image", common.ErrInvalidShape)
	}
	limit := effectiveLimit(lt, limitSideLen, max(b.Dx(), b.Dy()))
	rw, rh := inputSize(lt, limit, b.Dx(), b.Dy())

	resized := imaging.Resize(img, rw, rh, imaging.Linear)
	data := mempool.GetFloat32(3 * rw * rh)
	imageio.NormalizeInto(data, resized, rw, rh)
	return onnx.NewImageTensor(data, 3, rh, rw)
}
