package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// azureOutputFormat keeps segments as uncompressed PCM WAV; compression
// happens once, at merge time.
const azureOutputFormat = "riff-24khz-16bit-mono-pcm"

// Azure implements models.SpeechProvider against the Azure Cognitive
// Services TTS REST endpoint.
type Azure struct {
	key      string
	endpoint string
	client   *http.Client
}

// NewAzure creates an Azure TTS provider for the configured region.
func NewAzure(cfg config.AzureConfig) *Azure {
	return &Azure{
		key:      cfg.Key,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region),
		client:   &http.Client{},
	}
}

func (p *Azure) Name() string { return "azure" }

// Synthesize renders one chunk of text as WAV bytes, controlling voice and
// rate through SSML.
func (p *Azure) Synthesize(ctx context.Context, req models.SynthesizeRequest) ([]byte, error) {
	ssml := buildSSML(req.Text, req.Voice, req.Speed)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	httpReq.Header.Set("User-Agent", "bookvoice")

	resp, err := p.client.Do(httpReq)
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
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrInvalidResponse)
	}
	return audio, nil
}

func buildSSML(text, voice string, speed float64) string {
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="zh-CN"><voice name="%s"><prosody rate="%.2f">%s</prosody></voice></speak>`,
		voice, speed, xmlEscape(text))
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

var _ models.SpeechProvider = (*Azure)(nil)
