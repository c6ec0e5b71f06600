package narrative

import (
	"errors"
	"net/http"
)

const openRouterURL = "https://openrouter.ai/api/v1"

// newOpenRouter reuses the chat backend against OpenRouter. Model names are
// OpenRouter slugs such as "google/gemini-2.0-flash-001"; no aliases apply.
func newOpenRouter(cfg OpenRouterConfig, hc *http.Client) (*chatBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: missing API key")
	}
	url := cfg.BaseURL
	if url == "" {
		url = openRouterURL
	}
	return newChat(cfg.APIKey, url, cfg.Model, hc), nil
}
