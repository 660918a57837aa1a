package sweep

import (
	"context"
	"errors"
	"fmt"
	"net"

	bandsweep "github.com/fslongjin/bandsweep/sdk/go"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoBand           = errors.New("no band selected")
	ErrNoScope          = errors.New("no delete scope selected")
)

// ValidationError means the operation was not attempted.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError covers network failures, timeouts and malformed replies.
// A timeout never says whether the remote deletion completed.
type TransportError struct {
	Op      string
	Message string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if e.Timeout {
		msg = "timed out"
	}
	if e.Err != nil && !e.Timeout {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a structured failure reported by the API, surfaced verbatim.
type RemoteError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Err }

// ConflictError means another operation holds the resource; nothing was queued.
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("an operation on %s is already in flight", e.Resource)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target *TransportError
	return errors.As(err, &target) && target.Timeout
}

func IsRemote(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func validationErr(err error) error {
	return &ValidationError{Err: err}
}

// classifyProbe maps any count failure to TransportError. A count reply that
// is not a well-formed success is never read as zero.
func classifyProbe(err error) error {
	if isTimeout(err) {
		return &TransportError{Op: "count", Timeout: true, Err: err}
	}
	return &TransportError{Op: "count", Message: describe(err), Err: err}
}

// classifyDelete splits structured API failures from transport failures.
func classifyDelete(err error) error {
	if isTimeout(err) {
		return &TransportError{Op: "delete", Timeout: true, Err: err}
	}
	var apiErr *bandsweep.APIError
	if errors.As(err, &apiErr) && apiErr.Structured {
		return &RemoteError{Message: apiErr.Message, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &TransportError{Op: "delete", Message: describe(err), Err: err}
}

func describe(err error) string {
	var ctErr *bandsweep.ContentTypeError
	if errors.As(err, &ctErr) {
		return "non-JSON response"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	var apiErr *bandsweep.APIError
	if errors.As(err, &apiErr) {
		return "request failed"
	}
	return "network failure"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
