package errors

import (
	"errors"
	"fmt"
)

// Common error types for the passwordless flow
var (
	// Request-token errors
	ErrUnknownContact   = errors.New("unknown contact")
	ErrUnknownTransport = errors.New("unknown delivery transport")
	ErrVerifyFailure    = errors.New("contact verification failed")
	ErrDeliveryFailure  = errors.New("token delivery failed")

	// Token errors
	ErrTokenInvalid = errors.New("invalid token")
	ErrStoreFailure = errors.New("token store failure")

	// Session errors
	ErrSessionUnavailable = errors.New("session unavailable")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// WithCause returns an error that matches both sentinel and cause.
func WithCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
