// Package narrative writes a short plain-language summary of an assessment
// with an LLM. Each vendor SDK sits behind Backend; retries and the request
// journal wrap it.
package narrative

import (
	"context"
	"encoding/json"
)

// Backend completes a single-turn prompt.
type Backend interface {
	Complete(ctx context.Context, p Prompt) (*Reply, error)

	// Model is the model ID requests are sent to.
	Model() string
}

// Prompt is fixed instructions plus one user input. When Output is set the
// backend asks for structured output and checks the reply against it.
type Prompt struct {
	Instructions string
	Input        string
	Output       *OutputFormat
	MaxTokens    int

	// Temperature in [0, 1]; zero keeps the vendor default.
	Temperature float64
}

// Reply is a backend answer.
type Reply struct {
	Body   json.RawMessage
	Model  string
	Tokens Tokens
}

// Tokens counts the tokens billed for one completion.
type Tokens struct {
	In  int
	Out int
}

const defaultMaxTokens = 1024

func (p Prompt) maxTokens() int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return defaultMaxTokens
}

type purposeKey struct{}

// WithPurpose labels the requests made with ctx in the request journal.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

func purposeOf(ctx context.Context) string {
	if v, _ := ctx.Value(purposeKey{}).(string); v != "" {
		return v
	}
	return "unlabelled"
}

// lookupModel expands a short alias from table; anything else is taken to
// be a full model ID.
func lookupModel(table map[string]string, name string) string {
	if id := table[name]; id != "" {
		return id
	}
	return name
}
