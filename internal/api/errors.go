package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/ssmgen/internal/inference"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// statusFor maps a generation failure to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, inference.ErrConfig),
		errors.Is(err, inference.ErrEncoding),
		errors.Is(err, inference.ErrEmptyPrompt):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, ErrRateLimited), errors.Is(err, inference.ErrBusy):
		return http.StatusTooManyRequests, "rate_limit_error"
	case errors.Is(err, inference.ErrCancelled):
		return http.StatusServiceUnavailable, "unavailable_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
