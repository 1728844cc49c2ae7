package errors

import (
	"errors"
	"fmt"
)

// Common error types for the provider strategies and the login host
var (
	// Configuration errors
	ErrMissingAppID     = errors.New("app id (key) is required")
	ErrMissingAppSecret = errors.New("app secret is required")
	ErrMissingAppTicket = errors.New("a public app requires an app ticket")
	ErrInvalidAppType   = errors.New("app type must be 'public' or 'internal'")
	ErrMissingClientID  = errors.New("client id is required")

	// Provider errors
	ErrProviderAPI         = errors.New("provider api error")
	ErrUnexpectedResponse  = errors.New("unexpected provider response")
	ErrMissingIdentifier   = errors.New("profile has no user identifier")
	ErrMissingAccessToken  = errors.New("provider returned no access token")
	ErrAuthorizationDenied = errors.New("authorization denied by user")

	// Registry errors
	ErrUnknownStrategy = errors.New("unknown strategy")

	// Session errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateExpired    = errors.New("state expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// ProviderError is a non-zero status code reported inside a provider's JSON response body.
type ProviderError struct {
	Code int
	Msg  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[code: %d] %s", e.Code, e.Msg)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderAPI
}

// HTTPStatusError is returned when a provider endpoint answers with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

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

// New is errors.New, re-exported so callers need only this package.
func New(text string) error {
	return errors.New(text)
}
