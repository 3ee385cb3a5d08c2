package providers

import (
	"fmt"
	"net/http"

	"onemcp/internal/config"
	"onemcp/internal/llm"
	"onemcp/internal/llm/anthropic"
	"onemcp/internal/llm/google"
	openaillm "onemcp/internal/llm/openai"
)

// Build constructs an llm.Provider from the configured provider name.
func Build(cfg config.LLMConfig, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.New(cfg.Anthropic, httpClient), nil
	case "openai":
		return openaillm.New(cfg.OpenAI, httpClient), nil
	case "google":
		return google.New(cfg.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
