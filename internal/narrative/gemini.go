package narrative

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var geminiAliases = map[string]string{
	"gemini-flash": "gemini-2.0-flash",
	"gemini-pro":   "gemini-2.0-pro",
}

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, cfg GeminiConfig) (*geminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &geminiBackend{client: client, model: lookupModel(geminiAliases, cfg.Model)}, nil
}

func (b *geminiBackend) Model() string { return b.model }

func (b *geminiBackend) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	gc := &genai.GenerateContentConfig{MaxOutputTokens: int32(p.maxTokens())}
	if p.Instructions != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.Instructions, genai.RoleUser)
	}
	if p.Temperature > 0 {
		gc.Temperature = genai.Ptr(float32(p.Temperature))
	}
	if p.Output != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = toGenaiSchema(p.Output.Schema)
	}

	contents := []*genai.Content{genai.NewContentFromText(p.Input, genai.RoleUser)}
	res, err := b.client.Models.GenerateContent(ctx, b.model, contents, gc)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, fromStatus(apiErr.Code, nil, err)
		}
		return nil, failure(Unavailable, err)
	}

	body := []byte(res.Text())
	if len(res.Candidates) > 0 && res.Candidates[0].FinishReason == genai.FinishReasonMaxTokens && p.Output != nil {
		return nil, badReply(Truncated, body, nil)
	}
	if err := p.Output.check(body); err != nil {
		return nil, err
	}

	reply := &Reply{Body: body, Model: b.model}
	if u := res.UsageMetadata; u != nil {
		reply.Tokens = Tokens{In: int(u.PromptTokenCount), Out: int(u.CandidatesTokenCount)}
	}
	return reply, nil
}

var genaiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
}

// toGenaiSchema converts the JSON Schema subset used by OutputFormat.
// Gemini has no additionalProperties, so that keyword is dropped.
func toGenaiSchema(def map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if t, ok := def["type"].(string); ok {
		if s.Type = genaiTypes[t]; s.Type == "" {
			s.Type = genai.TypeString
		}
	}
	s.Description, _ = def["description"].(string)
	if props, ok := def["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if m, ok := sub.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(m)
			}
		}
	}
	if items, ok := def["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	s.Required = asStrings(def["required"])
	s.Enum = asStrings(def["enum"])
	return s
}

// asStrings reads a list written either as a Go []string or as decoded JSON.
func asStrings(v any) []string {
	if ss, ok := v.([]string); ok {
		return ss
	}
	list, _ := v.([]any)
	var out []string
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
