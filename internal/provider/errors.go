// Package provider defines the shared error taxonomy and construction of
// translation and speech backends.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Retryable failures: the call may succeed if repeated after a backoff.
var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrRateLimited = errors.New("provider rate limited")
	ErrTimeout     = errors.New("provider call timed out")
)

// Fatal failures: retrying wastes budget and delays the user-visible error.
var (
	ErrAuth            = errors.New("provider authentication failed")
	ErrQuotaExhausted  = errors.New("provider quota exhausted")
	ErrInvalidInput    = errors.New("provider rejected input")
	ErrInvalidResponse = errors.New("provider returned invalid response")
)

// Retryable reports whether err is worth retrying with backoff. Timeouts,
// rate limits and transient 5xx map here; auth, quota and validation
// failures do not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// FromStatusCode maps an HTTP status from a provider API onto the taxonomy.
// The body excerpt is carried in the message for diagnosis.
func FromStatusCode(status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, status, body)
	case status == 402:
		return fmt.Errorf("%w: status %d: %s", ErrQuotaExhausted, status, body)
	case status == 429:
		return fmt.Errorf("%w: status %d: %s", ErrRateLimited, status, body)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidInput, status, body)
	}
}
