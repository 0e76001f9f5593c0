package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dataset admin client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrSessionExpired   = errors.New("session expired")
	ErrRefreshFailed    = errors.New("token refresh failed")

	// Request errors
	ErrTransport  = errors.New("request failed")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")

	// Storage errors
	ErrCorruptSession = errors.New("corrupt session record")
	ErrDecrypt        = errors.New("unable to decrypt session record")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
