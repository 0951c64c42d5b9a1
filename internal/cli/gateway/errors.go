package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned without any request when no user is
	// authenticated.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthenticationFailed means the retried request was still
	// unauthorized after a successful refresh.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTokenRefreshFailed means the refresh endpoint itself failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
)

// HTTPError is a non-2xx, non-401 response
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed (status %d)", e.Status)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Body)
}

// DecodeError is a 2xx response whose body is not valid JSON for the
// expected shape
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport failure with no status available
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to send request: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err means the user has to log in again
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrTokenRefreshFailed)
}

// StatusCode returns the status carried by an *HTTPError, or 0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
