package box

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBox marks boxes with non-finite or inverted coordinates.
	ErrInvalidBox = errors.New("invalid box coordinates")
	// ErrInvalidConfidence marks confidences outside [0,1] or non-finite.
	ErrInvalidConfidence = errors.New("invalid confidence")
	// ErrInvalidPattern marks a text pattern that does not compile.
	ErrInvalidPattern = errors.New("invalid text pattern")
)

// ValidationError describes which field of a box broke the input contract.
type ValidationError struct {
	Field string
	Value float64
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("box %s=%g: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
