// Package shared holds the error taxonomy used by the sign-in and upload flows.
package shared

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrAuthRequired = errors.New("authentication required")
	ErrTransport    = errors.New("transport error")
	ErrPersistence  = errors.New("persistence error")
)

// Error carries a short user-facing message and the kind it belongs to.
// errors.Is(err, ErrValidation) and friends match on Kind.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func AuthRequired(msg string) error {
	return &Error{Kind: ErrAuthRequired, Message: msg}
}

func Transport(msg string, err error) error {
	return &Error{Kind: ErrTransport, Message: msg, Err: err}
}

func Persistence(msg string, err error) error {
	return &Error{Kind: ErrPersistence, Message: msg, Err: err}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong. Please try again."
}
