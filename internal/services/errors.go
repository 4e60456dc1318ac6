package services

import (
	"errors"
)

var (
	ErrAuthFailure   = errors.New("invalid username or password")
	ErrInactiveUser  = errors.New("user account is disabled")
	ErrDuplicateUser = errors.New("username already exists")
	ErrForbidden     = errors.New("not allowed")
	ErrNotFound      = errors.New("task not found")
)

// ValidationError rejects form input. Message is shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
