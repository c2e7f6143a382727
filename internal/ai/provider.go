package ai

import (
	"context"
	"errors"

	"github.com/jsvoboda/photo-curator/internal/config"
)

// Caption is the provider's description of a photo.
type Caption struct {
	// Description of what's in the photo.
	Description string `json:"description"`
	// Labels with confidence scores.
	Labels []LabelWithConfidence `json:"labels"`
}

// LabelWithConfidence represents a label with its confidence score.
type LabelWithConfidence struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0-1, only labels above the suggestion threshold are kept
}

// Provider defines the interface for caption backends.
type Provider interface {
	Name() string
	// Caption describes a photo. knownTags biases the model towards the
	// vocabulary already in use for the project.
	Caption(ctx context.Context, imageData []byte, knownTags []string) (*Caption, error)
}

// SelectProvider picks the first configured provider in a fixed priority
// order: OpenAI, Gemini, Ollama, llama.cpp. Deterministic so the same
// environment always captions with the same backend.
func SelectProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	if cfg.OpenAI.Token != "" {
		return NewOpenAIProvider(cfg.OpenAI.Token), nil
	}
	if cfg.Gemini.APIKey != "" {
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey)
	}
	if cfg.Ollama.URL != "" {
		return NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	}
	if cfg.LlamaCpp.URL != "" {
		return NewLlamaCppProvider(cfg.LlamaCpp.URL, cfg.LlamaCpp.Model)
	}
	return nil, errors.New("no caption provider configured")
}
