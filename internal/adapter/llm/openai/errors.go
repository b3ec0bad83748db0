package openai

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures from the Chat Completions API.
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeServer         ErrorType = "server"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error is a classified failure from the API. Retryable errors are
// transient conditions (rate limits, server errors, network failures)
// that may succeed on a later attempt.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("openai: %s: %s (status %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("openai: %s: %s", e.Type, e.Message)
}

// IsRetryable reports whether err is an API error worth retrying.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

func newAuthenticationError(message string, statusCode int) *Error {
	return &Error{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  false,
	}
}

func newRateLimitError(message string) *Error {
	return &Error{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: 429,
		Retryable:  true,
	}
}

func newInvalidRequestError(message string, statusCode int) *Error {
	return &Error{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  false,
	}
}

func newServerError(message string, statusCode int) *Error {
	return &Error{
		Type:       ErrorTypeServer,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  true,
	}
}

func newNetworkError(err error) *Error {
	return &Error{
		Type:      ErrorTypeNetwork,
		Message:   err.Error(),
		Retryable: true,
	}
}

func newTimeoutError(message string) *Error {
	return &Error{
		Type:      ErrorTypeTimeout,
		Message:   message,
		Retryable: true,
	}
}

// classifyStatus maps a non-2xx status and the API's error detail to a
// typed error.
func classifyStatus(statusCode int, detail ErrorDetail) *Error {
	message := detail.Message
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", statusCode)
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		return newAuthenticationError(message, statusCode)
	case statusCode == 429:
		return newRateLimitError(message)
	case statusCode == 400 || statusCode == 404 || statusCode == 422:
		return newInvalidRequestError(message, statusCode)
	case statusCode >= 500:
		return newServerError(message, statusCode)
	default:
		return &Error{
			Type:       ErrorTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
		}
	}
}
