package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no credentials of the provider's
	// type were present on the request.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates that the provided credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthenticationFailed indicates that authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken indicates that the token is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ErrKeyDisabled indicates that the API key is disabled.
	ErrKeyDisabled = errors.New("API key disabled")

	// ErrKeyExpired indicates that the API key has expired.
	ErrKeyExpired = errors.New("API key expired")

	// ErrUnknownProvider indicates a provider name with no registration.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNotImplemented indicates a declared but unimplemented provider.
	ErrNotImplemented = errors.New("provider not implemented")
)

// AuthError represents an authentication error with provider context.
type AuthError struct {
	Provider string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// UnavailableError marks a provider failure caused by infrastructure,
// not by the credential. The stage treats it as fail-closed and rejects
// with a service error instead of an authentication failure.
type UnavailableError struct {
	Provider string
	Cause    error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("auth provider %s unavailable: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err marks provider infrastructure failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsCredentialError reports whether err is a credential problem that the
// chain can skip past, as opposed to an infrastructure fault.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrNoCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrKeyDisabled) ||
		errors.Is(err, ErrKeyExpired) ||
		errors.Is(err, ErrNotImplemented)
}
