package testutil

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNG(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(PNG(t, 5, 4)))
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	r, _, _, _ := img.At(2, 2).RGBA()
	assert.Zero(t, r)
	r, _, _, _ = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	_, err = png.Decode(bytes.NewReader(PNG(t, 1, 1)))
	require.NoError(t, err)
}

func TestWriteImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "a.jpg")
	WriteImage(t, path, 6, 3)
	require.True(t, FileExists(path))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	WriteFiles(t, dir, "a.txt", "sub/b.txt")
	assert.True(t, FileExists(filepath.Join(dir, "a.txt")))
	assert.True(t, FileExists(filepath.Join(dir, "sub", "b.txt")))
	assert.False(t, FileExists(filepath.Join(dir, "c.txt")))
}

func TestBlank(t *testing.T) {
	img := Blank(2, 2, color.Black)
	assert.Equal(t, uint8(0), img.Pix[0])
	assert.Equal(t, uint8(255), img.Pix[3])
}
