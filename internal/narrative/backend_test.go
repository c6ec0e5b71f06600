package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryJSON = `{"summary":"O modelo indicou risco elevado, puxado pela HbA1c.","caveat":"Não substitui avaliação médica."}`

var testPrompt = Prompt{
	Instructions: "Explique.",
	Input:        "Resultado: positivo",
	Output:       summaryFormat,
	MaxTokens:    256,
}

func claudeServer(t *testing.T, h http.HandlerFunc) *anthropicBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	b, err := newAnthropic(AnthropicConfig{APIKey: "test-key", Model: "claude-haiku"},
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	return b
}

func claudeMessage(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAnthropicComplete(t *testing.T) {
	var sent map[string]any
	b := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		writeJSON(w, http.StatusOK, claudeMessage(summaryJSON, "end_turn"))
	})

	reply, err := b.Complete(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.JSONEq(t, summaryJSON, string(reply.Body))
	assert.Equal(t, Tokens{In: 50, Out: 30}, reply.Tokens)
	assert.Equal(t, "claude-haiku-4-5-20251001", b.Model())

	assert.Equal(t, "claude-haiku-4-5-20251001", sent["model"])
	assert.EqualValues(t, 256, sent["max_tokens"])
	assert.NotNil(t, sent["system"])
}

func TestAnthropicFailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		want       Kind
		wantWait   time.Duration
	}{
		{"rate limited", http.StatusTooManyRequests, "7", RateLimited, 7 * time.Second},
		{"server error", http.StatusInternalServerError, "", Unavailable, 0},
		{"bad request", http.StatusBadRequest, "", Rejected, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				writeJSON(w, tt.status, map[string]any{
					"type":  "error",
					"error": map[string]any{"type": "api_error", "message": "nope"},
				})
			})

			_, err := b.Complete(context.Background(), Prompt{Input: "x", MaxTokens: 100})
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.want, e.Kind)
			assert.Equal(t, tt.wantWait, e.RetryAfter)
		})
	}
}

func TestAnthropicRejectsOffFormatReply(t *testing.T) {
	b := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, claudeMessage(`{"summary":"x"}`, "end_turn"))
	})
	_, err := b.Complete(context.Background(), testPrompt)
	kind, ok := KindOf(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, Malformed, kind)
}

func TestAnthropicTruncated(t *testing.T) {
	b := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, claudeMessage(`{"summary":"O mod`, "max_tokens"))
	})
	_, err := b.Complete(context.Background(), testPrompt)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, Truncated, e.Kind)
	assert.Equal(t, `{"summary":"O mod`, string(e.Body))
}

// chatServer answers every request with one chat completion and keeps the
// Authorization header it saw.
func chatServer(t *testing.T, finish string, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": summaryJSON},
				"finish_reason": finish,
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	srv := chatServer(t, "stop", nil)
	b, err := newOpenAI(OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)

	reply, err := b.Complete(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", reply.Model)
	assert.Equal(t, Tokens{In: 40, Out: 25}, reply.Tokens)
}

func TestOpenAITruncated(t *testing.T) {
	srv := chatServer(t, "length", nil)
	b, err := newOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), testPrompt)
	kind, _ := KindOf(err)
	assert.Equal(t, Truncated, kind)
}

func TestOpenRouterSpeaksChatWire(t *testing.T) {
	var auth string
	srv := chatServer(t, "stop", &auth)
	b, err := newOpenRouter(OpenRouterConfig{APIKey: "or-key", Model: "google/gemini-2.0-flash-001", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Bearer or-key", auth)
	assert.Equal(t, "google/gemini-2.0-flash-001", b.Model())
}

func TestBackendsNeedKeys(t *testing.T) {
	_, err := newAnthropic(AnthropicConfig{})
	assert.Error(t, err)
	_, err = newOpenAI(OpenAIConfig{}, nil)
	assert.Error(t, err)
	_, err = newOpenRouter(OpenRouterConfig{}, nil)
	assert.Error(t, err)
	_, err = newGemini(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestLookupModel(t *testing.T) {
	assert.Equal(t, "claude-haiku-4-5-20251001", lookupModel(claudeAliases, "claude-haiku"))
	assert.Equal(t, "claude-sonnet-4-20250514", lookupModel(claudeAliases, "claude-sonnet-4-20250514"))
	assert.Equal(t, "gemini-2.0-flash", lookupModel(geminiAliases, "gemini-flash"))
	assert.Equal(t, "gpt-4o-mini", lookupModel(gptAliases, "gpt-4o-mini"))
}

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string", "description": "texto"},
			"level":   map[string]any{"type": "string", "enum": []any{"baixo", "alto"}},
			"scores":  map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
		},
		"required":             []string{"summary"},
		"additionalProperties": false,
	})

	assert.EqualValues(t, "OBJECT", s.Type)
	require.Len(t, s.Properties, 3)
	assert.Equal(t, "texto", s.Properties["summary"].Description)
	assert.Equal(t, []string{"baixo", "alto"}, s.Properties["level"].Enum)
	assert.EqualValues(t, "NUMBER", s.Properties["scores"].Items.Type)
	assert.Equal(t, []string{"summary"}, s.Required)
}

func TestOutputFormatCheck(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"conforming", summaryJSON, true},
		{"missing caveat", `{"summary":"ok"}`, false},
		{"extra field", `{"summary":"ok","caveat":"","x":1}`, false},
		{"not json", `ok`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := summaryFormat.check([]byte(tt.body))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, Malformed, e.Kind)
			assert.Equal(t, tt.body, string(e.Body))
		})
	}

	var none *OutputFormat
	assert.NoError(t, none.check([]byte("anything")))
}

func TestFailureClassification(t *testing.T) {
	assert.Equal(t, RateLimited, fromStatus(429, nil, nil).Kind)
	assert.Equal(t, Unavailable, fromStatus(503, nil, nil).Kind)
	assert.Equal(t, Unavailable, fromStatus(408, nil, nil).Kind)
	assert.Equal(t, Rejected, fromStatus(401, nil, nil).Kind)

	h := http.Header{}
	h.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	assert.Zero(t, retryAfter(h), "only delta-seconds are honored")

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	wrapped := errors.Join(errors.New("ctx"), failure(Rejected, nil))
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Rejected, kind)
	assert.Equal(t, "llm rejected", failure(Rejected, nil).Error())
}

func TestScripted(t *testing.T) {
	s := Script(Step{Body: `{"a":1}`}, Step{Err: failure(RateLimited, nil)})

	reply, err := s.Complete(context.Background(), Prompt{Input: "one"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(reply.Body))

	_, err = s.Complete(context.Background(), Prompt{Input: "two"})
	kind, _ := KindOf(err)
	assert.Equal(t, RateLimited, kind)

	_, err = s.Complete(context.Background(), Prompt{Input: "three"})
	kind, _ = KindOf(err)
	assert.Equal(t, Unavailable, kind, "an exhausted script is unavailable")
	require.Len(t, s.Prompts(), 3)
	assert.Equal(t, "three", s.Prompts()[2].Input)

	offline := &Scripted{Fallback: summaryJSON}
	for range 2 {
		reply, err := offline.Complete(context.Background(), Prompt{})
		require.NoError(t, err)
		assert.Equal(t, summaryJSON, string(reply.Body))
	}
}
