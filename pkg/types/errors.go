// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrChannelSealed indicates a send after the End message was queued
	ErrChannelSealed = errors.New("channel is sealed")

	// ErrInvalidInput indicates invalid input
	ErrInvalidInput = errors.New("invalid input")

	// ErrWorkerPanic indicates a worker recovered from a panic
	ErrWorkerPanic = errors.New("worker panicked")
)

// StageError represents a failure while processing one input in a pipeline stage
type StageError[T any] struct {
	// Stage is the name of the stage where the error occurred
	Stage string

	// Input is the value that was being processed
	Input T

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *StageError[T]) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying error
func (e *StageError[T]) Unwrap() error {
	return e.Cause
}

// NewStageError creates a new stage error
func NewStageError[T any](stage string, input T, cause error) *StageError[T] {
	return &StageError[T]{
		Stage:   stage,
		Input:   input,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *StageError[T]) WithContext(key string, value interface{}) *StageError[T] {
	e.Context[key] = value
	return e
}

// StageOf returns the stage name of the first StageError in err's chain
func StageOf(err error) (string, bool) {
	var staged interface{ stageName() string }
	if errors.As(err, &staged) {
		return staged.stageName(), true
	}
	return "", false
}

func (e *StageError[T]) stageName() string {
	return e.Stage
}
