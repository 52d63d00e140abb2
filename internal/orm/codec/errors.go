package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedJSON is returned when a document is not valid JSON text
	ErrMalformedJSON = errors.New("malformed JSON document")

	// ErrTypeMismatch is returned when a JSON value does not fit the declared property type
	ErrTypeMismatch = errors.New("JSON value does not match property type")

	// ErrNonConformingGraph is returned by the encoder when a graph value does not match its schema
	ErrNonConformingGraph = errors.New("graph does not conform to schema")
)

// DecodeError reports why a JSON document could not be decoded, and where
type DecodeError struct {
	Path   string // JSON path of the offending value, "$" for the document root
	Reason string
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is or wraps a *DecodeError
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

func mismatch(path, format string, args ...interface{}) error {
	return &DecodeError{Path: path, Reason: fmt.Sprintf(format, args...), Err: ErrTypeMismatch}
}

func nonConforming(path, format string, args ...interface{}) error {
	return fmt.Errorf("%w at %s: %s", ErrNonConformingGraph, path, fmt.Sprintf(format, args...))
}
