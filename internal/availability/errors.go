package availability

import "errors"

// ErrValidation is the parent of every input error returned by this package.
// Callers map it to a client error with errors.Is.
var ErrValidation = errors.New("invalid search parameters")

// Input errors. Each one wraps ErrValidation.
var (
	ErrInvalidRange     = validationError("search range start must not be after search range end")
	ErrInvalidDuration  = validationError("duration must be positive")
	ErrInvalidInterval  = validationError("interval must be positive")
	ErrInvalidSlotCount = validationError("slots per calendar must be at least 1")
	ErrInvalidWindow    = validationError("invalid booking window")
	ErrInvalidTimezone  = validationError("invalid timezone")
	ErrNoCalendars      = validationError("at least one calendar is required")
)

type inputError struct {
	msg string
}

func validationError(msg string) error {
	return &inputError{msg: msg}
}

func (e *inputError) Error() string {
	return e.msg
}

func (e *inputError) Unwrap() error {
	return ErrValidation
}
