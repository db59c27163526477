package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", ErrUnavailable, true},
		{"rate limited", ErrRateLimited, true},
		{"timeout", ErrTimeout, true},
		{"wrapped unavailable", fmt.Errorf("call failed: %w", ErrUnavailable), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", &fakeNetError{timeout: true}, true},
		{"net non-timeout", &fakeNetError{timeout: false}, false},
		{"auth", ErrAuth, false},
		{"quota", ErrQuotaExhausted, false},
		{"invalid input", ErrInvalidInput, false},
		{"invalid response", ErrInvalidResponse, false},
		{"plain error", errors.New("something else"), false},
		{"cancelled", context.Canceled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestFromStatusCode(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, ErrAuth},
		{403, ErrAuth},
		{402, ErrQuotaExhausted},
		{429, ErrRateLimited},
		{500, ErrUnavailable},
		{502, ErrUnavailable},
		{503, ErrUnavailable},
		{400, ErrInvalidInput},
		{404, ErrInvalidInput},
		{422, ErrInvalidInput},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			err := FromStatusCode(tc.status, "body excerpt")
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "body excerpt")
		})
	}
}

func TestFromStatusCode_RetryableAlignment(t *testing.T) {
	assert.True(t, Retryable(FromStatusCode(429, "")))
	assert.True(t, Retryable(FromStatusCode(503, "")))
	assert.False(t, Retryable(FromStatusCode(401, "")))
	assert.False(t, Retryable(FromStatusCode(400, "")))
}
