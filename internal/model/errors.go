package model

import "errors"

var (
	ErrClosed     = errors.New("engine closed")
	ErrInputSize  = errors.New("feature vector size mismatch")
	ErrEmptyBatch = errors.New("empty prediction batch")
	ErrLabelRange = errors.New("label out of range")
)

// InferenceError wraps any failure of an engine to produce output.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return "inference " + e.Op + ": " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
