package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// F5TTS implements models.SpeechProvider against the self-hosted F5-TTS
// microservice, which runs its own task queue: create a task, poll its
// status, then download the finished audio.
type F5TTS struct {
	baseURL      string
	pollInterval time.Duration
	client       *http.Client
}

// NewF5TTS creates an F5-TTS provider.
func NewF5TTS(cfg config.F5TTSConfig) *F5TTS {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &F5TTS{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: interval,
		client:       &http.Client{},
	}
}

func (p *F5TTS) Name() string { return "f5tts" }

type f5Task struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	AudioURL     string `json:"audio_url"`
	ErrorMessage string `json:"error_message"`
}

// Synthesize creates a synthesis task, polls until it finishes, and returns
// the downloaded audio bytes. The caller's context bounds the whole exchange.
func (p *F5TTS) Synthesize(ctx context.Context, req models.SynthesizeRequest) ([]byte, error) {
	task, err := p.createTask(ctx, req)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for task %s: %v", ErrTimeout, task.TaskID, ctx.Err())
		case <-time.After(p.pollInterval):
		}

		status, err := p.getTask(ctx, task.TaskID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			return p.downloadAudio(ctx, status.AudioURL)
		case "failed":
			msg := status.ErrorMessage
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("%w: synthesis task failed: %s", ErrInvalidInput, msg)
		}
	}
}

func (p *F5TTS) createTask(ctx context.Context, req models.SynthesizeRequest) (*f5Task, error) {
	payload := map[string]any{
		"text":           req.Text,
		"language":       "auto",
		"speed":          req.Speed,
		"remove_silence": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	task, err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/tts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return nil, fmt.Errorf("%w: missing task_id", ErrInvalidResponse)
	}
	return task, nil
}

func (p *F5TTS) getTask(ctx context.Context, taskID string) (*f5Task, error) {
	return p.doJSON(ctx, http.MethodGet, p.baseURL+"/task/"+taskID, nil)
}

func (p *F5TTS) doJSON(ctx context.Context, method, url string, body io.Reader) (*f5Task, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, FromStatusCode(resp.StatusCode, excerpt(raw))
	}

	var task f5Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &task, nil
}

func (p *F5TTS) downloadAudio(ctx context.Context, audioURL string) ([]byte, error) {
	// The service reports a relative URL like /audio/<filename>.
	parts := strings.Split(audioURL, "/")
	filename := parts[len(parts)-1]
	if filename == "" {
		return nil, fmt.Errorf("%w: empty audio url", ErrInvalidResponse)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/audio/"+filename, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, FromStatusCode(resp.StatusCode, excerpt(raw))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrInvalidResponse)
	}
	return audio, nil
}

var _ models.SpeechProvider = (*F5TTS)(nil)
