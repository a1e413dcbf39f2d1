// Package visualize draws OCR results over the source image.
package visualize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
)

// goldenAngle spreads consecutive hues as far apart as possible.
const goldenAngle = 137.50776405

// Options controls overlay rendering.
type Options struct {
	Thickness int  // line quad stroke width in pixels
	Words     bool // also draw word quads, 1 px, in a lighter shade
}

// DefaultOptions draws 2 px line quads and word quads.
func DefaultOptions() Options {
	return Options{Thickness: 2, Words: true}
}

// Palette returns n distinct, deterministic colors.
func Palette(n int) []color.NRGBA {
	out := make([]color.NRGBA, n)
	for i := range out {
		hue := math.Mod(float64(i)*goldenAngle, 360)
		out[i] = toNRGBA(colorful.Hsv(hue, 0.85, 0.95))
	}
	return out
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func lighter(c color.NRGBA) color.NRGBA {
	base, _ := colorful.MakeColor(c)
	return toNRGBA(base.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.45))
}

// Render returns a copy of img with every line quad of res drawn in its own
// palette color.
func Render(img image.Image, res *pipeline.ImageResult, opts Options) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	if res == nil {
		return dst
	}
	palette := Palette(len(res.Lines))
	for i, l := range res.Lines {
		if len(l.Polygon) < 2 {
			continue
		}
		col := palette[i]
		if opts.Words {
			wc := lighter(col)
			for _, w := range l.Words {
				DrawPolygon(dst, w.Quad[:], wc, 1)
			}
		}
		DrawPolygon(dst, l.Quad[:], col, opts.Thickness)
	}
	return dst
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst draw.Image, pts []geometry.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	ip := make([]image.Point, len(pts))
	for i, p := range pts {
		ip[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	for i := range ip {
		drawLine(dst, ip[i], ip[(i+1)%len(ip)], col, thickness)
	}
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst draw.Image, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	dx := absInt(b.X - x0)
	dy := -absInt(b.Y - y0)
	sx, sy := -1, -1
	if x0 < b.X {
		sx = 1
	}
	if y0 < b.Y {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == b.X && y0 == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst draw.Image, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	bounds := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(bounds) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// OverlayPath returns dir/<name>_overlay.png for the source path src.
func OverlayPath(dir, src string) string {
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "image"
	}
	return filepath.Join(dir, name+"_overlay.png")
}

// SaveOverlay renders res over img and writes it as PNG next to the other
// overlays in dir. It returns the written path.
func SaveOverlay(dir, src string, img image.Image, res *pipeline.ImageResult, opts Options) (string, error) {
	if img == nil {
		return "", fmt.Errorf("overlay for %s: nil image", src)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create overlay dir: %w", err)
	}
	path := OverlayPath(dir, src)
	if err := imaging.Save(Render(img, res, opts), path); err != nil {
		return "", fmt.Errorf("write overlay %s: %w", path, err)
	}
	return path, nil
}
