package completion

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySeed           = errors.New("original_notes must contain at least one note")
	ErrInvalidSeed         = errors.New("invalid seed")
	ErrEmptyResponse       = errors.New("language model returned empty content")
	ErrInvalidContinuation = errors.New("language model returned unusable notes")
	ErrContinuationOverlap = errors.New("continuation starts before the end of the seed")
	ErrNoProvider          = errors.New("no completion provider configured")
)

// ValidationError marks a failure caused by the request rather than by the
// provider. HTTP handlers answer it with 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}

func invalidf(sentinel error, format string, args ...any) error {
	return invalid(fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...))
}

// IsValidation reports whether err was caused by the request.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
