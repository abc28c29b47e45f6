package canvas

import (
	"errors"
	"strings"
)

var (
	ErrValidation    = errors.New("canvas: validation failed")
	ErrUnknownStatus = errors.New("canvas: unknown command status")
)

// ValidationError carries validator messages verbatim for the submitter.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
