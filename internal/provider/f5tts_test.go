package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestF5TTS(url string) *F5TTS {
	return NewF5TTS(config.F5TTSConfig{
		BaseURL:      url,
		PollInterval: time.Millisecond,
	})
}

func TestF5TTS_Synthesize(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tts", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "chapter text", payload["text"])
		json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "pending"})
	})
	mux.HandleFunc("GET /task/task-1", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "completed", AudioURL: "/audio/out.wav"})
	})
	mux.HandleFunc("GET /audio/out.wav", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("wav-bytes"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestF5TTS(srv.URL)
	audio, err := p.Synthesize(context.Background(), models.SynthesizeRequest{Text: "chapter text", Speed: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), audio)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestF5TTS_Synthesize_TaskFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tts", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "pending"})
	})
	mux.HandleFunc("GET /task/task-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "failed", ErrorMessage: "out of memory"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestF5TTS(srv.URL)
	_, err := p.Synthesize(context.Background(), models.SynthesizeRequest{Text: "t", Speed: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestF5TTS_Synthesize_MissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(f5Task{Status: "pending"})
	}))
	defer srv.Close()

	p := newTestF5TTS(srv.URL)
	_, err := p.Synthesize(context.Background(), models.SynthesizeRequest{Text: "t", Speed: 1})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestF5TTS_Synthesize_ContextBoundsPolling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tts", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "pending"})
	})
	mux.HandleFunc("GET /task/task-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(f5Task{TaskID: "task-1", Status: "processing"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := newTestF5TTS(srv.URL)
	_, err := p.Synthesize(ctx, models.SynthesizeRequest{Text: "t", Speed: 1})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestF5TTS_Synthesize_ServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestF5TTS(srv.URL)
	_, err := p.Synthesize(context.Background(), models.SynthesizeRequest{Text: "t", Speed: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, Retryable(err))
}
