package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// SiliconFlow implements models.TranslationProvider against the SiliconFlow
// OpenAI-compatible chat completions API.
type SiliconFlow struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewSiliconFlow creates a SiliconFlow translation provider. Per-call
// deadlines come from the caller's context, not the HTTP client.
func NewSiliconFlow(cfg config.SiliconFlowConfig) *SiliconFlow {
	return &SiliconFlow{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{},
	}
}

func (p *SiliconFlow) Name() string { return "siliconflow" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Translate sends one chunk through the chat completions endpoint. For
// Chinese targets, Arabic numerals in the result are converted to Chinese
// numerals so the speech stage reads them correctly.
func (p *SiliconFlow) Translate(ctx context.Context, text, targetLang string) (string, error) {
	payload := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: translationPrompt(text, targetLang)},
		},
		Temperature: 0.3,
		MaxTokens:   4000,
		Stream:      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", FromStatusCode(resp.StatusCode, excerpt(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	translated := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if translated == "" {
		return "", fmt.Errorf("%w: empty translation", ErrInvalidResponse)
	}

	if targetLang == "zh" {
		translated = ToChineseNumerals(translated)
	}

	return translated, nil
}

// translationPrompt asks for a literary translation that keeps paragraph
// structure and spells numbers out in the target script, and nothing else.
func translationPrompt(text, targetLang string) string {
	langName := targetLang
	switch targetLang {
	case "zh":
		langName = "Chinese"
	case "en":
		langName = "English"
	}

	return fmt.Sprintf(`You are a professional literary translator. Translate the following text into fluent, natural %s.

Source text:
%s

Requirements:
1. Preserve the literary style and tone of the source.
2. Keep the paragraph structure of the source.
3. Keep proper nouns consistent throughout.
4. Spell out all Arabic numerals in the target script so text-to-speech reads them correctly (years digit by digit, decimals with a spoken decimal point).
5. Return only the translation, with no explanations or commentary.

Begin the translation:`, langName, text)
}

// excerpt trims a provider error body for inclusion in error messages.
func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

var _ models.TranslationProvider = (*SiliconFlow)(nil)
