// Package testutil holds image and file helpers shared by package tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Blank returns a w×h image filled with c.
func Blank(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// PNG returns a white w×h PNG with a black pixel at (2,2) when it fits.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := Blank(w, h, color.White)
	if w > 2 && h > 2 {
		img.Set(2, 2, color.Black)
	}
	return EncodePNG(t, img)
}

// WriteImage saves a white w×h image at path in the format of its
// extension, creating parent directories.
func WriteImage(t testing.TB, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(Blank(w, h, color.White), path))
}

// WriteFiles creates one-byte placeholder files under dir.
func WriteFiles(t testing.TB, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
