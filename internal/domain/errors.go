package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyKeyword    = errors.New("empty keyword")
	ErrKeywordTooShort = errors.New("keyword too short")
	ErrKeywordTooLong  = errors.New("keyword too long")
	ErrInvalidFilter   = errors.New("invalid filter")
)

var (
	ErrInvalidMaxRetries  = errors.New("max retries must be non-negative")
	ErrMaxRetriesExceeded = errors.New("max retries cannot exceed 10")
)

// Sentinels for errors.Is against a *ClientError of the matching kind.
var (
	ErrValidation  = errors.New("validation error")
	ErrNetwork     = errors.New("network error")
	ErrTimeout     = errors.New("timeout")
	ErrBadRequest  = errors.New("bad request")
	ErrServerError = errors.New("server error")
	ErrUnexpected  = errors.New("unexpected response")
)

type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNetwork     ErrorKind = "network"
	KindTimeout     ErrorKind = "timeout"
	KindBadRequest  ErrorKind = "bad_request"
	KindServerError ErrorKind = "server_error"
	KindUnexpected  ErrorKind = "unexpected"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindBadRequest:
		return ErrBadRequest
	case KindServerError:
		return ErrServerError
	default:
		return ErrUnexpected
	}
}

// Retryable reports whether a failure of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork || k == KindTimeout || k == KindServerError
}

// ClientError is the only error type the search client returns.
type ClientError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *ClientError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

func (e *ClientError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func NewValidationError(err error) *ClientError {
	return &ClientError{Kind: KindValidation, Err: err}
}

func NewNetworkError(err error) *ClientError {
	return &ClientError{Kind: KindNetwork, Err: err}
}

func NewTimeoutError(err error) *ClientError {
	return &ClientError{Kind: KindTimeout, Err: err}
}

func NewUnexpectedError(status int, err error) *ClientError {
	return &ClientError{Kind: KindUnexpected, StatusCode: status, Err: err}
}

// NewStatusError classifies a non-200 upstream status. body is kept as the
// human-readable cause, truncated.
func NewStatusError(status int, body []byte) *ClientError {
	e := &ClientError{StatusCode: status, Message: truncate(string(body), 200)}
	switch {
	case status >= 400 && status < 500:
		e.Kind = KindBadRequest
	case status >= 500 && status < 600:
		e.Kind = KindServerError
	default:
		e.Kind = KindUnexpected
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
	}
	return e
}

// KindOf returns the kind of err, or "" if err is not a *ClientError.
func KindOf(err error) ErrorKind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
