package narrative

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var claudeAliases = map[string]string{
	"claude-haiku":  "claude-haiku-4-5-20251001",
	"claude-sonnet": "claude-sonnet-4-20250514",
}

type anthropicBackend struct {
	client anthropic.Client
	model  string
}

// newAnthropic builds the Claude backend. opts reach the SDK client, which
// is how tests point it at a local server.
func newAnthropic(cfg AnthropicConfig, opts ...option.RequestOption) (*anthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: missing API key")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &anthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  lookupModel(claudeAliases, cfg.Model),
	}, nil
}

func (b *anthropicBackend) Model() string { return b.model }

func (b *anthropicBackend) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(p.maxTokens()),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(p.Input))},
	}
	if p.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.Instructions}}
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(p.Temperature)
	}
	if p.Output != nil {
		params.OutputConfig = anthropic.OutputConfigParam{
			Format: anthropic.JSONOutputFormatParam{Schema: p.Output.Schema},
		}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.Response != nil {
			return nil, fromStatus(apiErr.StatusCode, apiErr.Response.Header, err)
		}
		return nil, failure(Unavailable, err)
	}

	var body []byte
	for _, block := range msg.Content {
		if block.Type == "text" {
			body = []byte(block.Text)
			break
		}
	}
	if body == nil {
		return nil, badReply(Malformed, nil, fmt.Errorf("anthropic: no text block in reply"))
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens && p.Output != nil {
		return nil, badReply(Truncated, body, nil)
	}
	if err := p.Output.check(body); err != nil {
		return nil, err
	}

	return &Reply{
		Body:   body,
		Model:  string(msg.Model),
		Tokens: Tokens{In: int(msg.Usage.InputTokens), Out: int(msg.Usage.OutputTokens)},
	}, nil
}
