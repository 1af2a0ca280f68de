package llm

import (
	"context"
	"fmt"
)

// Config selects and configures an LLM provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// Provider is a minimal text completion client. Implementations must be
// safe for concurrent use.
type Provider interface {
	// Complete sends a system prompt and a user prompt and returns the
	// raw model output.
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// OpenAI-compatible providers and their base URLs
var openAICompatibleProviders = map[string]string{
	"deepseek":  "https://api.deepseek.com/v1",
	"groq":      "https://api.groq.com/openai/v1",
	"mistral":   "https://api.mistral.ai/v1",
	"together":  "https://api.together.xyz/v1",
	"fireworks": "https://api.fireworks.ai/inference/v1",
}

// New builds a provider from configuration.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}

		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}

		return newOpenAICompatible(cfg.APIKey, baseURL, model), nil
	case "gemini", "google":
		model := cfg.Model
		if model == "" {
			model = "gemini-2.0-flash"
		}

		return newGemini(cfg.APIKey, model), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}

		model := cfg.Model
		if model == "" {
			model = "qwen2.5:7b"
		}

		// Ollama's OpenAI-compatible endpoint
		return newOpenAICompatible("ollama", baseURL+"/v1", model), nil
	default:
		// check if it's an OpenAI-compatible provider
		if baseURL, ok := openAICompatibleProviders[cfg.Provider]; ok {
			if cfg.BaseURL != "" {
				baseURL = cfg.BaseURL
			}
			return newOpenAICompatible(cfg.APIKey, baseURL, cfg.Model), nil
		}
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// IsKnownProvider checks if a provider is recognized
func IsKnownProvider(provider string) bool {
	switch provider {
	case "openai", "gemini", "google", "ollama":
		return true
	default:
		_, ok := openAICompatibleProviders[provider]
		return ok
	}
}
