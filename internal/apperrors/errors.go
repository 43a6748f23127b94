// Package apperrors defines the error taxonomy shared by the generation
// pipeline and the HTTP surface, plus the sanitizer that keeps provider
// credentials and URLs out of anything logged or returned to a client.
package apperrors

import (
	"errors"
	"fmt"
	"regexp"
)

// Code identifies one error category from the taxonomy. Every AppError
// carries exactly one.
type Code string

const (
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeInvalidProvider       Code = "INVALID_PROVIDER"
	CodeProviderNotConfigured Code = "PROVIDER_NOT_CONFIGURED"
	CodeProviderAuth          Code = "PROVIDER_AUTH_ERROR"
	CodeProviderAPI           Code = "PROVIDER_API_ERROR"
	CodeProviderRateLimit     Code = "PROVIDER_RATE_LIMIT"
	CodeJobNotFound           Code = "JOB_NOT_FOUND"
	CodeJobNotCompleted       Code = "JOB_NOT_COMPLETED"
	CodeAudioProcessing       Code = "AUDIO_PROCESSING_ERROR"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// httpStatus maps each code to the HTTP status the API layer replies with.
var httpStatus = map[Code]int{
	CodeValidation:            400,
	CodeInvalidProvider:       400,
	CodeProviderNotConfigured: 400,
	CodeProviderAuth:          502,
	CodeProviderAPI:           502,
	CodeProviderRateLimit:     429,
	CodeJobNotFound:           404,
	CodeJobNotCompleted:       409,
	CodeAudioProcessing:       500,
	CodeInternal:              500,
}

// AppError is the single error type the HTTP layer knows how to render.
// Message and Details are sanitized at construction time so nothing
// downstream needs to remember to do it again.
type AppError struct {
	Code    Code
	Message string
	Details string
	cause   error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// HTTPStatus returns the status code this error's taxonomy entry maps to.
func (e *AppError) HTTPStatus() int {
	status, ok := httpStatus[e.Code]
	if !ok {
		return 500
	}

	return status
}

// New builds an AppError, sanitizing message and details before they are
// ever stored.
func New(code Code, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: Sanitize(message),
		Details: Sanitize(details),
	}
}

// Wrap builds an AppError that remembers the underlying cause for
// errors.Is/errors.As chains, while still sanitizing what is user-visible.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: Sanitize(message),
		cause:   cause,
	}
}

func NotFound(message string) *AppError     { return New(CodeJobNotFound, message, "") }
func NotCompleted(message string) *AppError { return New(CodeJobNotCompleted, message, "") }
func Validation(message string) *AppError   { return New(CodeValidation, message, "") }

// As is a thin wrapper over errors.As so callers don't need to spell out
// the type parameter at every call site.
func As(err error) (*AppError, bool) {
	var appErr *AppError

	ok := errors.As(err, &appErr)

	return appErr, ok
}

var (
	keyLikePattern = regexp.MustCompile(`[A-Za-z0-9_\-]{20,}`)
	urlPattern     = regexp.MustCompile(`https?://\S+`)
)

// Sanitize redacts anything that looks like a credential or a URL from a
// string before it is logged or returned to a client. Applied in two
// passes, matching the order the key-like pattern and the URL pattern are
// expected to fire: a bare key first, then any URL that might embed one.
func Sanitize(s string) string {
	if s == "" {
		return s
	}

	s = keyLikePattern.ReplaceAllString(s, "[REDACTED]")
	s = urlPattern.ReplaceAllString(s, "[URL REDACTED]")

	return s
}
