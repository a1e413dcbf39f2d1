// Package models locates the default detection, classification and
// recognition models inside a models directory.
package models

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default model file names.
const (
	Detection      = "ch_PP-OCRv4_det_infer.onnx"
	Classification = "ch_ppocr_mobile_v2.0_cls_infer.onnx"
	Recognition    = "ch_PP-OCRv4_rec_infer.onnx"
	Dictionary     = "ppocr_keys_v1.txt"
)

// Subdirectories of the organized layout.
const (
	TypeDetection      = "detection"
	TypeClassification = "classification"
	TypeRecognition    = "recognition"
	TypeDictionaries   = "dictionaries"
)

// Paths are the resolved model files.
type Paths struct {
	Detector   string
	Classifier string
	Recognizer string
	Dictionary string // empty when no dictionary file exists
}

// ResolveModelPath returns dir/kind/filename when that file exists and the
// flat dir/filename otherwise.
func ResolveModelPath(dir, kind, filename string) string {
	if kind != "" {
		organized := filepath.Join(dir, kind, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(dir, filename)
}

// Resolve returns the default model paths under dir.
func Resolve(dir string) Paths {
	p := Paths{
		Detector:   ResolveModelPath(dir, TypeDetection, Detection),
		Classifier: ResolveModelPath(dir, TypeClassification, Classification),
		Recognizer: ResolveModelPath(dir, TypeRecognition, Recognition),
	}
	// the recognizer may carry its own character table
	if dict := ResolveModelPath(dir, TypeDictionaries, Dictionary); ValidateModelExists(dict) == nil {
		p.Dictionary = dict
	}
	return p
}

// ValidateModelExists checks that a model file exists at path.
func ValidateModelExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory: %s", path)
	}
	return nil
}
