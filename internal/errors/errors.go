package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Classeviva client
var (
	// Session errors
	ErrNotAuthorized      = errors.New("not authorized")
	ErrMissingCredentials = errors.New("credentials not set")
	ErrSessionExpired     = errors.New("session expired")
	ErrNoCache            = errors.New("no cached session")

	// Remote errors
	ErrRemote           = errors.New("remote error")
	ErrUnexpectedStatus = errors.New("unexpected status")

	// Request errors
	ErrInvalidFilter = errors.New("invalid filter")
	ErrNoSchoolCode  = errors.New("school code not known")
	ErrNoLocation    = errors.New("no location header")
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
