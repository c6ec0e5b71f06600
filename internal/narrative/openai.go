package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var gptAliases = map[string]string{
	"gpt-4o":      "gpt-4o",
	"gpt-4o-mini": "gpt-4o-mini",
}

// chatBackend speaks the OpenAI chat completions wire format, which
// OpenRouter serves too.
type chatBackend struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg OpenAIConfig, hc *http.Client) (*chatBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	return newChat(cfg.APIKey, cfg.BaseURL, lookupModel(gptAliases, cfg.Model), hc), nil
}

func newChat(apiKey, baseURL, model string, hc *http.Client) *chatBackend {
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	if hc != nil {
		cc.HTTPClient = hc
	}
	return &chatBackend{client: openai.NewClientWithConfig(cc), model: model}
}

func (b *chatBackend) Model() string { return b.model }

func (b *chatBackend) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:               b.model,
		MaxCompletionTokens: p.maxTokens(),
		Temperature:         float32(p.Temperature),
	}
	if p.Instructions != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: p.Instructions,
		})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: p.Input,
	})
	if p.Output != nil {
		schema, err := json.Marshal(p.Output.Schema)
		if err != nil {
			return nil, fmt.Errorf("encode output format %s: %w", p.Output.Name, err)
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        p.Output.Name,
				Description: p.Output.Description,
				Schema:      json.RawMessage(schema),
				Strict:      true,
			},
		}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fromStatus(apiErr.HTTPStatusCode, nil, err)
		}
		return nil, failure(Unavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, badReply(Malformed, nil, errors.New("chat completion without choices"))
	}

	choice := resp.Choices[0]
	body := []byte(choice.Message.Content)
	if choice.FinishReason == openai.FinishReasonLength && p.Output != nil {
		return nil, badReply(Truncated, body, nil)
	}
	if err := p.Output.check(body); err != nil {
		return nil, err
	}

	return &Reply{
		Body:   body,
		Model:  resp.Model,
		Tokens: Tokens{In: resp.Usage.PromptTokens, Out: resp.Usage.CompletionTokens},
	}, nil
}
