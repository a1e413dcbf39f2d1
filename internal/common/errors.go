package common

import (
	"errors"
	"fmt"
)

// Fatal input errors. Anything else that goes wrong inside postprocessing is
// a silent per-region rejection, not an error.
var (
	ErrNilImage     = errors.New("nil image")
	ErrInvalidShape = errors.New("invalid shape")
	ErrEmptyCharset = errors.New("empty character table")
)

// ImageProcessingError records which image operation failed.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }
