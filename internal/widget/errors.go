package widget

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyMessage = errors.New("widget: message is empty")
	ErrBusy         = errors.New("widget: a message is already being sent")
	ErrClosed       = errors.New("widget: closed")
	ErrNotFound     = errors.New("widget: message not found")
	ErrNotRetryable = errors.New("widget: only failed user messages can be retried")
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorUnavailable  ErrorCode = "UNAVAILABLE"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
)

// Text shown in the transcript for each failure class.
const (
	loginText       = "Please log in to continue the conversation."
	unavailableText = "The chat service is currently unavailable."
	rateLimitedText = "Too many messages. Please wait a moment before trying again."
	genericText     = "Sorry, I encountered an error. Please try again."
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("widget: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("widget: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the bot reply that stands in for a failed exchange.
func (e *Error) UserMessage() string {
	switch e.Code {
	case ErrorUnauthorized:
		return loginText
	case ErrorUnavailable:
		return unavailableText
	case ErrorRateLimited:
		return rateLimitedText
	default:
		return genericText
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// classify maps a failed chat call onto an Error by HTTP status.
func classify(err error) *Error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	status, _ := upstreamStatusCode(err)
	switch status {
	case http.StatusUnauthorized:
		return newError(ErrorUnauthorized, "chat_unauthorized", err)
	case http.StatusNotFound:
		return newError(ErrorUnavailable, "chat_not_found", err)
	case http.StatusTooManyRequests:
		return newError(ErrorRateLimited, "chat_rate_limited", err)
	default:
		return newError(ErrorUpstream, "chat_error", err)
	}
}
