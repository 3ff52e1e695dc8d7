package llm

import "errors"

// The client sorts failures into two classes: transient ones are worth
// retrying and failing over (network faults, overload, 5xx), fatal ones
// are not (bad credentials, malformed requests, unknown providers).

type errClass int

const (
	classTransient errClass = iota
	classFatal
)

// classifiedError tags an underlying error with retry semantics.
type classifiedError struct {
	class errClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	return &classifiedError{class: classTransient, err: err}
}

// Fatal marks err as terminal. The client gives up on the whole request
// rather than burning attempts on the remaining endpoints.
func Fatal(err error) error {
	return &classifiedError{class: classFatal, err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.class == classTransient
}

// IsFatal reports whether err was marked terminal.
func IsFatal(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.class == classFatal
}
