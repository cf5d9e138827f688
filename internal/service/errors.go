package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrResetTokenNotFoundOrExpired covers every reset-flow failure: no
	// matching token, already consumed, or past its expiry.
	ErrResetTokenNotFoundOrExpired = errors.New("reset token not found or expired")

	ErrNotFound = errors.New("not found")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DeliveryError means the mail collaborator failed. The reset window has
// already been rolled back when this is returned.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return "delivery failed: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// TransientError means the credential store was unavailable or timed out.
// The caller may retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "store unavailable: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// storeFault wraps any store error that is not one of the taxonomy
// sentinels. Timeouts, broken connections and anything unexpected all count
// as "store unavailable"; nothing else is allowed past the service boundary.
func storeFault(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether an error is safe for the caller to retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}
