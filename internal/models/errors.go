package models

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction        = errors.New("extraction failed")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrEmbedding         = errors.New("embedding failed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCorruptIndex      = errors.New("corrupt index")
	ErrGeneration        = errors.New("answer generation failed")
	ErrNoIndex           = errors.New("no index available")
)

// PipelineError ties a failure to one of the kinds above. Both the kind and
// the underlying cause match with errors.Is.
type PipelineError struct {
	Kind error
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

func ExtractionError(op string, err error) error    { return newError(ErrExtraction, op, err) }
func ConfigurationError(op string, err error) error { return newError(ErrConfiguration, op, err) }
func EmbeddingError(op string, err error) error     { return newError(ErrEmbedding, op, err) }
func CorruptIndexError(op string, err error) error  { return newError(ErrCorruptIndex, op, err) }
func GenerationError(op string, err error) error    { return newError(ErrGeneration, op, err) }

// DimensionMismatchError reports a vector of length got where want was expected.
func DimensionMismatchError(op string, want, got int) error {
	return newError(ErrDimensionMismatch, op, fmt.Errorf("want %d, got %d", want, got))
}
