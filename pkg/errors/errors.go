// Package errors defines the sentinel errors shared by the metric engines and
// the services, plus an AppError wrapper that carries an HTTP status code.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCountMismatch       = errors.New("hypothesis and reference counts differ")
	ErrNoReferences        = errors.New("no references provided and the reference cache is empty")
	ErrEmptyReference      = errors.New("empty reference sentence found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnknownMetric       = errors.New("unknown metric")
	ErrJobNotFound         = errors.New("evaluation job not found")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrTimeout             = errors.New("operation timed out")
	ErrInternal            = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error returned by the engines or services to the
// status code an HTTP handler should answer with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCountMismatch),
		errors.Is(err, ErrNoReferences),
		errors.Is(err, ErrEmptyReference),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnsupportedLanguage),
		errors.Is(err, ErrUnknownMetric):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsInputError reports whether err was caused by caller input rather than a
// failure of the engine or its dependencies.
func IsInputError(err error) bool {
	return HTTPStatusCode(err) == http.StatusBadRequest
}
