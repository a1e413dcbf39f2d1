package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, Detection), ResolveModelPath(dir, TypeDetection, Detection))

	organized := filepath.Join(dir, TypeDetection, Detection)
	touch(t, organized)
	assert.Equal(t, organized, ResolveModelPath(dir, TypeDetection, Detection))
	assert.Equal(t, filepath.Join(dir, Detection), ResolveModelPath(dir, "", Detection))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	p := Resolve(dir)
	assert.Equal(t, filepath.Join(dir, Detection), p.Detector)
	assert.Equal(t, filepath.Join(dir, Classification), p.Classifier)
	assert.Equal(t, filepath.Join(dir, Recognition), p.Recognizer)
	assert.Empty(t, p.Dictionary)

	touch(t, filepath.Join(dir, TypeRecognition, Recognition))
	touch(t, filepath.Join(dir, TypeDictionaries, Dictionary))
	p = Resolve(dir)
	assert.Equal(t, filepath.Join(dir, TypeRecognition, Recognition), p.Recognizer)
	assert.Equal(t, filepath.Join(dir, TypeDictionaries, Dictionary), p.Dictionary)
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.onnx")

	require.ErrorContains(t, ValidateModelExists(path), "model file not found")
	touch(t, path)
	require.NoError(t, ValidateModelExists(path))
	require.ErrorContains(t, ValidateModelExists(dir), "is a directory")
}
