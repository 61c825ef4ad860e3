package chatgpt

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote API failure so callers can branch on it
// without inspecting status codes.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized" // 401, token rejected
	KindForbidden    ErrorKind = "forbidden"    // 403, account banned or no permission
	KindNotFound     ErrorKind = "not_found"    // 404
	KindRateLimited  ErrorKind = "rate_limited" // 429
	KindUnknown      ErrorKind = "unknown"      // anything else, including transport errors
)

// RemoteError represents a failed call against the remote backend.
type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote: %s [%d]: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote: %s: %s", e.Kind, e.Message)
}

func kindForStatus(code int) ErrorKind {
	switch code {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 429:
		return KindRateLimited
	default:
		return KindUnknown
	}
}

func isKind(err error, kind ErrorKind) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// IsUnauthorized returns true if the error is a 401 from the remote API.
func IsUnauthorized(err error) bool {
	return isKind(err, KindUnauthorized)
}

// IsForbidden returns true if the error is a 403 from the remote API.
func IsForbidden(err error) bool {
	return isKind(err, KindForbidden)
}

// IsNotFound returns true if the error is a 404 from the remote API.
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsRateLimited returns true if the error is a 429 from the remote API.
func IsRateLimited(err error) bool {
	return isKind(err, KindRateLimited)
}

// IsAuthFailure reports whether the error indicates the credential itself is
// bad (401 or 403), as opposed to a transient remote condition.
func IsAuthFailure(err error) bool {
	return IsUnauthorized(err) || IsForbidden(err)
}
