// Package mock provides test doubles for the provider interfaces.
package mock

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/bookvoice/internal/provider"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// Translator satisfies models.TranslationProvider for testing.
type Translator struct {
	Name_         string
	TranslateFunc func(ctx context.Context, text, targetLang string) (string, error)
}

func (m *Translator) Name() string { return m.Name_ }

func (m *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text, targetLang)
	}
	return "", nil
}

// NewTranslator returns a Translator that echoes a marked copy of its input.
func NewTranslator() *Translator {
	return &Translator{
		Name_: "mock",
		TranslateFunc: func(_ context.Context, text, targetLang string) (string, error) {
			return fmt.Sprintf("[%s] %s", targetLang, text), nil
		},
	}
}

// NewFailingTranslator returns a Translator that always returns err.
func NewFailingTranslator(err error) *Translator {
	return &Translator{
		Name_: "mock-failing",
		TranslateFunc: func(_ context.Context, _, _ string) (string, error) {
			return "", err
		},
	}
}

// Speech satisfies models.SpeechProvider for testing.
type Speech struct {
	Name_          string
	SynthesizeFunc func(ctx context.Context, req models.SynthesizeRequest) ([]byte, error)
}

func (m *Speech) Name() string { return m.Name_ }

func (m *Speech) Synthesize(ctx context.Context, req models.SynthesizeRequest) ([]byte, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return nil, nil
}

// NewSpeech returns a Speech provider producing small fake audio payloads.
func NewSpeech() *Speech {
	return &Speech{
		Name_: "mock",
		SynthesizeFunc: func(_ context.Context, req models.SynthesizeRequest) ([]byte, error) {
			return []byte("RIFF-fake-audio:" + req.Text), nil
		},
	}
}

// NewFailingSpeech returns a Speech provider that always returns err.
func NewFailingSpeech(err error) *Speech {
	return &Speech{
		Name_: "mock-failing",
		SynthesizeFunc: func(_ context.Context, _ models.SynthesizeRequest) ([]byte, error) {
			return nil, err
		},
	}
}

// NewTimeoutSpeech returns a Speech provider that blocks until the context
// is cancelled.
func NewTimeoutSpeech() *Speech {
	return &Speech{
		Name_: "mock-timeout",
		SynthesizeFunc: func(ctx context.Context, _ models.SynthesizeRequest) ([]byte, error) {
			<-ctx.Done()
			return nil, provider.ErrTimeout
		},
	}
}

// Compile-time interface checks.
var (
	_ models.TranslationProvider = (*Translator)(nil)
	_ models.SpeechProvider      = (*Speech)(nil)
)
