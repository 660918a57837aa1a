package bandsweep

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a band or resource is not found.
	ErrNotFound = &APIError{StatusCode: 404, Message: "resource not found"}

	// ErrBadRequest is returned when the request is invalid.
	ErrBadRequest = &APIError{StatusCode: 400, Message: "invalid request"}

	// ErrUnauthorized is returned when the access token is missing or expired.
	ErrUnauthorized = &APIError{StatusCode: 401, Message: "unauthorized"}

	// ErrRateLimited is returned when the upstream API throttles the caller.
	ErrRateLimited = &APIError{StatusCode: 429, Message: "rate limited"}

	// ErrInternal is returned when an internal server error occurs.
	ErrInternal = &APIError{StatusCode: 500, Message: "internal server error"}
)

// APIError represents a structured error response from the API.
// Structured is true when the server sent a JSON envelope with an error.
type APIError struct {
	StatusCode int
	Message    string
	Structured bool
	Err        error
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is checks if the error matches target.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(status int, message string) *APIError {
	if message == "" {
		text := http.StatusText(status)
		if text == "" || status < 400 {
			text = "request failed"
		}
		return &APIError{StatusCode: status, Message: text}
	}
	return &APIError{StatusCode: status, Message: message, Structured: true}
}

// ContentTypeError is returned when the server replies with something other
// than JSON, typically an HTML error page from a proxy.
type ContentTypeError struct {
	StatusCode  int
	ContentType string
	Snippet     string
}

func (e *ContentTypeError) Error() string {
	ct := e.ContentType
	if ct == "" {
		ct = "no content type"
	}
	return fmt.Sprintf("server error (%d): unexpected %s response", e.StatusCode, ct)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBadRequest checks if an error is a bad request error.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsUnauthorized checks if an error is an authentication error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsContentType checks if an error is a non-JSON reply.
func IsContentType(err error) bool {
	var ct *ContentTypeError
	return errors.As(err, &ct)
}
