package authclient

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pkg/errors"
)

// DefaultErrorMessage is used when the server does not provide one
const DefaultErrorMessage = "An error occurred"

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// ErrMissingToken is returned when token mode login succeeds without a token
var ErrMissingToken = errors.New("login response did not include a token")

// ErrStaleSession is returned when a result arrives for a session that was reset
var ErrStaleSession = errors.New("session changed while the request was in flight")

// ErrRouteNotFound the navigation target does not match any route
var ErrRouteNotFound = errors.New("route not found")

// ErrRedirectLoop too many chained guard redirects
var ErrRedirectLoop = errors.New("too many redirects")

// ErrInvalidTransition the session status change is not allowed
var ErrInvalidTransition = errors.New("invalid session status transition")

// AuthError is a non 2xx response from the remote service.
type AuthError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *AuthError) Error() string {
	return e.Message
}

// IsUnauthorized reports whether the server rejected the session
func (e *AuthError) IsUnauthorized() bool {
	return e != nil && e.StatusCode == http.StatusUnauthorized
}

// NetworkError is a request that could not be sent or received.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError is a client side validation failure. It is never sent to the server.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil {
			return e.Err.Error()
		}
		return "validation failed"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps an ozzo validation error
func NewValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	verr := &ValidationError{Err: err, Fields: map[string]string{}}

	var fields validation.Errors
	if errors.As(err, &fields) {
		for name, ferr := range fields {
			if ferr != nil {
				verr.Fields[name] = ferr.Error()
			}
		}
	}

	return verr
}

// IsUnauthorizedError will check for a 401 AuthError anywhere in the chain
func IsUnauthorizedError(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.IsUnauthorized()
	}
	return false
}

// IsNetworkError will check for transport failures
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsValidationError will check for client side validation failures
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// ErrorMessage returns the user facing message for err.
// Server messages are kept, anything else falls back to fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}

	if fallback == "" {
		return DefaultErrorMessage
	}
	return fallback
}
