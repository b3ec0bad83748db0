package openai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		detail     ErrorDetail
		wantType   ErrorType
		retryable  bool
	}{
		{"unauthorized", 401, ErrorDetail{Message: "bad key"}, ErrorTypeAuthentication, false},
		{"forbidden", 403, ErrorDetail{Message: "no access"}, ErrorTypeAuthentication, false},
		{"rate limited", 429, ErrorDetail{Message: "slow down"}, ErrorTypeRateLimit, true},
		{"bad request", 400, ErrorDetail{Message: "bad body"}, ErrorTypeInvalidRequest, false},
		{"not found", 404, ErrorDetail{Message: "no such model"}, ErrorTypeInvalidRequest, false},
		{"unprocessable", 422, ErrorDetail{Message: "bad schema"}, ErrorTypeInvalidRequest, false},
		{"internal error", 500, ErrorDetail{Message: "boom"}, ErrorTypeServer, true},
		{"bad gateway", 502, ErrorDetail{}, ErrorTypeServer, true},
		{"teapot", 418, ErrorDetail{Message: "short and stout"}, ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.statusCode, tt.detail)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.statusCode, err.StatusCode)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestError_Error(t *testing.T) {
	withStatus := &Error{Type: ErrorTypeRateLimit, Message: "slow down", StatusCode: 429}
	assert.Contains(t, withStatus.Error(), "openai")
	assert.Contains(t, withStatus.Error(), "rate_limit")
	assert.Contains(t, withStatus.Error(), "429")

	withoutStatus := &Error{Type: ErrorTypeNetwork, Message: "connection refused"}
	assert.Contains(t, withoutStatus.Error(), "network")
	assert.NotContains(t, withoutStatus.Error(), "status")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(newRateLimitError("x")))
	assert.True(t, IsRetryable(newServerError("x", 500)))
	assert.True(t, IsRetryable(newNetworkError(errors.New("refused"))))
	assert.True(t, IsRetryable(newTimeoutError("x")))
	assert.False(t, IsRetryable(newAuthenticationError("x", 401)))
	assert.False(t, IsRetryable(newInvalidRequestError("x", 400)))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))

	wrapped := fmt.Errorf("giving up: %w", newServerError("x", 503))
	assert.True(t, IsRetryable(wrapped))
}
