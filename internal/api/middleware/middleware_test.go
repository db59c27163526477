package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/bookvoice/internal/api/middleware"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Cache ---

type mockCache struct {
	counter int64
	err     error
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (m *mockCache) Ping(_ context.Context) error                                     { return nil }
func (m *mockCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ models.JobStatus, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetJobStatus(_ context.Context, _ uuid.UUID) (*models.JobStatus, bool, error) {
	return nil, false, nil
}
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	m.counter++
	return m.counter, m.err
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// --- Recovery ---

func TestRecovery_PassesThrough(t *testing.T) {
	handler := mw.Recovery(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRecovery_CatchesPanic(t *testing.T) {
	handler := mw.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", errObj["code"])
}

// --- Logger ---

func TestLogger_PassesThrough(t *testing.T) {
	handler := mw.Logger(okHandler())

	req := httptest.NewRequest("GET", "/some/path", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

// --- RateLimit ---

func TestRateLimit_UnderLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 5)
	handler := rl.Limit(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 2)
	handler := rl.Limit(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errObj["code"])
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{}, 10)
	handler := rl.Limit(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:4321"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(&mockCache{err: assert.AnError}, 1)
	handler := rl.Limit(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
