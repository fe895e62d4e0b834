package llm

import (
	"fmt"

	"github.com/memvault/memvault/internal/config"
)

// NewTextGenerator builds the TextGenerator named by cfg.Provider, throttled
// to cfg.RateLimitPerSec requests/second (unbounded if unset).
func NewTextGenerator(cfg config.LLMConfig) (TextGenerator, error) {
	gen, err := newTextGeneratorClient(cfg)
	if err != nil {
		return nil, err
	}
	return newRateLimitedGenerator(gen, cfg.RateLimitPerSec), nil
}

func newTextGeneratorClient(cfg config.LLMConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model}), nil
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "qwen2.5:7b"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: baseURL, Model: model}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}

// NewEmbeddingProvider builds the EmbeddingProvider named by cfg.Provider.
// Anthropic never appears here: it has no embeddings endpoint, so callers
// select an embedding provider independently of the text-generation one.
func NewEmbeddingProvider(cfg config.EmbeddingConfig) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		}), nil
	case "mock":
		return NewMockEmbeddingClient(cfg.Dimensions), nil
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: baseURL, Model: model}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
