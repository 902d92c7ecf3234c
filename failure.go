package fetchq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Failure reasons that are not HTTP status codes.
const (
	ReasonCancelled   = "cancelled"
	ReasonMaxAttempts = "max attempts exceeded"
	ReasonUnknown     = "unknown error"
)

// TransientError is a failure worth retrying: timeouts, connection resets,
// rate-limit responses.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a failure that will not succeed on retry: 4xx responses
// other than rate limiting, malformed URLs, full disks, denied permissions.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure with the given reason tag.
func Transient(reason string, err error) error {
	return &TransientError{Reason: reason, Err: err}
}

// Permanent wraps err as a non-retryable failure with the given reason tag.
func Permanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

// StatusReason formats an HTTP status code as a failure reason tag.
func StatusReason(code int) string {
	return fmt.Sprintf("%d HTTP Status", code)
}

// StatusError classifies an unexpected HTTP status code.
// 429, 408 and 5xx are transient; everything else is permanent.
func StatusError(code int, url string) error {
	err := fmt.Errorf("HTTP %d for %s", code, url)
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code >= 500:
		return Transient(StatusReason(code), err)
	default:
		return Permanent(StatusReason(code), err)
	}
}

// IsTransient reports whether err should be retried.
// Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || IsCancellation(err) {
		return false
	}
	var t *TransientError
	return errors.As(err, &t)
}

// IsCancellation reports whether err stems from context cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// FailureReason returns the reason tag recorded for err.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	if IsCancellation(err) {
		return ReasonCancelled
	}
	var t *TransientError
	if errors.As(err, &t) {
		return t.Reason
	}
	var p *PermanentError
	if errors.As(err, &p) {
		return p.Reason
	}
	if ErrorCode(err) == EINVALID {
		return "invalid"
	}
	return ReasonUnknown
}
