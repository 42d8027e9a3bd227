// Package llm wraps the chat-completion backends used to parse spoken
// reminders into structured fields.
package llm

import (
	"context"
	"errors"
	"fmt"

	"reminders/internal/config"
)

// ErrDisabled is returned by NewProvider when no backend is configured.
var ErrDisabled = errors.New("llm provider disabled")

type Message struct {
	Role    string
	Content string
}

type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Provider sends one non-streaming chat completion and returns the text.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// NewProvider creates a Provider based on the configuration.
func NewProvider(cfg config.Config) (Provider, error) {
	switch cfg.Parser.Provider {
	case config.ProviderOllama:
		return NewOllama(cfg.Ollama.BaseURL, cfg.Parser.Timeout), nil

	case config.ProviderDeepSeek:
		return NewDeepSeek(cfg.DeepSeek.APIKey)

	case config.ProviderNone, "":
		return nil, ErrDisabled

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
			cfg.Parser.Provider, config.ProviderDeepSeek, config.ProviderOllama)
	}
}
