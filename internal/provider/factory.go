package provider

import (
	"fmt"

	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// NewTranslationProvider constructs the configured translation backend.
// Called once at server startup.
func NewTranslationProvider(cfg config.TranslationConfig) (models.TranslationProvider, error) {
	switch cfg.Provider {
	case "siliconflow":
		return NewSiliconFlow(cfg.SiliconFlow), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q: must be one of siliconflow", cfg.Provider)
	}
}

// NewSpeechProvider constructs the configured TTS backend.
func NewSpeechProvider(cfg config.TTSConfig) (models.SpeechProvider, error) {
	switch cfg.Provider {
	case "azure":
		return NewAzure(cfg.Azure), nil
	case "f5tts":
		return NewF5TTS(cfg.F5TTS), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: must be one of azure, f5tts", cfg.Provider)
	}
}
