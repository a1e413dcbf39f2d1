// Package imageio decodes input images and converts them into the
// normalized CHW float layout the OCR models consume.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
)

// ErrTooLarge is wrapped by Decode when the input exceeds its limit.
var ErrTooLarge = errors.New("image too large")

// SupportedExtensions lists the file extensions LoadFile accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// IsSupported reports whether path has a supported image extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Metadata describes a decoded image.
type Metadata struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format"`
	Size   int64  `json:"size_bytes"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// LoadFile opens and decodes the image at path.
func LoadFile(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &common.ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, Metadata{}, &common.ImageProcessingError{
			Operation: "load",
			Err:       fmt.Errorf("unsupported format: %s", filepath.Ext(path)),
		}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied image path
	if err != nil {
		return nil, Metadata{}, &common.ImageProcessingError{Operation: "load", Err: err}
	}
	img, meta, err := DecodeBytes(data)
	meta.Path = path
	return img, meta, err
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (image.Image, Metadata, error) {
	if len(data) == 0 {
		return nil, Metadata{}, &common.ImageProcessingError{Operation: "decode", Err: io.ErrUnexpectedEOF}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, &common.ImageProcessingError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, Metadata{}, &common.ImageProcessingError{Operation: "decode", Err: common.ErrNilImage}
	}
	return img, Metadata{Format: format, Size: int64(len(data)), Width: b.Dx(), Height: b.Dy()}, nil
}

// Decode reads r fully and decodes it, refusing bodies larger than limit
// bytes when limit > 0.
func Decode(r io.Reader, limit int64) (image.Image, Metadata, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Metadata{}, &common.ImageProcessingError{Operation: "read", Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, Metadata{}, &common.ImageProcessingError{
			Operation: "read",
			Err:       fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, limit),
		}
	}
	return DecodeBytes(data)
}
