package reconstruction

import (
	"errors"
	"fmt"

	"odtrecon/pkg/arena"
)

var (
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("reconstruction: invalid input")

	// ErrUnsupported is wrapped when a recognized but unimplemented option is used.
	ErrUnsupported = errors.New("reconstruction: not supported")

	// ErrAllocation is wrapped when a large buffer cannot be allocated.
	ErrAllocation = arena.ErrAllocation
)

// ValidationError describes a rejected input. It is always returned before
// any heavy computation starts.
type ValidationError struct {
	// Field names the offending argument or option
	Field string

	// Reason explains what is wrong with it
	Reason string

	kind error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrValidation or ErrUnsupported.
func (e *ValidationError) Unwrap() error {
	if e.kind != nil {
		return e.kind
	}
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), kind: ErrValidation}
}

func unsupported(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), kind: ErrUnsupported}
}
