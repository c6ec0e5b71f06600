package narrative

import (
	"context"
	"fmt"

	"github.com/abhisek/diarisk/internal/store"
	"go.uber.org/zap"
)

const offlineSummary = `{"summary":"Resumo de demonstração gerado sem modelo de linguagem.","caveat":"Este resultado não substitui avaliação médica."}`

// NewBackend builds the configured backend. Each attempt is journaled to
// events (nil to skip) and the retry policy runs outside the journal.
func NewBackend(ctx context.Context, cfg Config, events store.EventRepo, log *zap.Logger) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		b   Backend
		err error
	)
	switch cfg.Provider {
	case "anthropic":
		b, err = newAnthropic(cfg.Anthropic)
	case "openai":
		b, err = newOpenAI(cfg.OpenAI, nil)
	case "openrouter":
		b, err = newOpenRouter(cfg.OpenRouter, nil)
	case "gemini":
		b, err = newGemini(ctx, cfg.Gemini)
	case "mock":
		b = &Scripted{Fallback: offlineSummary}
	}
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Provider, err)
	}

	b = &journaled{next: b, provider: cfg.Provider, events: events, log: log}
	return withRetry(b, cfg.Retry), nil
}
