package core

import "github.com/pkg/errors"

type (
	// FieldError reports a validation failure on a single input field.
	FieldError struct {
		Field string
		Error string
	}

	// ValidationError carries the overall error plus per-field details,
	// ready to be serialized in an API response.
	ValidationError struct {
		Err    error
		Fields []FieldError
	}
)

func NewValidationError(err error, fields ...FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals that the server can no longer serve requests reliably
// and must be restarted.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error { return &shutdown{message: msg} }

func (s shutdown) Error() string { return s.message }

// IsShutdown checks whether err, at its cause, requires a graceful shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
