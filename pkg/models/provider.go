// Package models contains shared data models used across the BookVoice codebase.
package models

import "context"

// TranslationProvider is the interface every translation backend must
// implement. Never call specific providers directly — always inject this
// interface.
type TranslationProvider interface {
	// Translate converts one chunk of text into targetLang.
	Translate(ctx context.Context, text, targetLang string) (string, error)
	// Name returns the provider identifier (e.g., "siliconflow").
	Name() string
}

// SpeechProvider is the interface every text-to-speech backend must implement.
type SpeechProvider interface {
	// Synthesize converts one chunk of text into audio bytes.
	Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error)
	// Name returns the provider identifier (e.g., "azure", "f5tts").
	Name() string
}

// SynthesizeRequest is the input to a single TTS call.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Speed float64
}
