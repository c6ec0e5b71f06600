package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Purpose labels narrative requests in the LLM request log.
const Purpose = "narrative"

// Factor is one ranked attribution, already carrying its display name.
type Factor struct {
	Name  string
	Value float64
}

// Facts is what the narrator knows about one assessment.
type Facts struct {
	Positive    bool
	Verdict     string
	Probability float64
	Threshold   float64
	Factors     []Factor
}

// Summary is the structured narrative returned by the LLM.
type Summary struct {
	Text   string `json:"summary"`
	Caveat string `json:"caveat"`
}

// String renders the summary for display.
func (s *Summary) String() string {
	if s.Caveat == "" {
		return s.Text
	}
	return s.Text + "\n" + s.Caveat
}

var summaryFormat = &OutputFormat{
	Name:        "risk-summary",
	Description: "Plain-language summary of a diabetes risk screening result",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"caveat":  map[string]any{"type": "string"},
		},
		"required":             []any{"summary", "caveat"},
		"additionalProperties": false,
	},
}

const systemPrompt = `Você explica resultados de uma triagem automatizada de risco de diabetes para leigos.
Escreva em português do Brasil, em no máximo três frases curtas.
Não faça diagnóstico, não recomende medicamentos e não invente números.
No campo "caveat", lembre que o resultado não substitui avaliação médica.`

// Narrator produces summaries through a Backend.
type Narrator struct {
	backend Backend
	cfg     Config
}

// NewNarrator creates a Narrator. cfg supplies the timeout and how many
// factors the prompt mentions.
func NewNarrator(b Backend, cfg Config) *Narrator {
	if cfg.MaxFactors <= 0 {
		cfg.MaxFactors = DefaultConfig().MaxFactors
	}
	return &Narrator{backend: b, cfg: cfg}
}

// Narrate asks the provider for a summary of facts.
func (n *Narrator) Narrate(ctx context.Context, facts Facts) (*Summary, error) {
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	reply, err := n.backend.Complete(WithPurpose(ctx, Purpose), Prompt{
		Instructions: systemPrompt,
		Input:        buildPrompt(facts, n.cfg.MaxFactors),
		Output:       summaryFormat,
		MaxTokens:    400,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(reply.Body, &s); err != nil {
		return nil, badReply(Malformed, reply.Body, err)
	}
	s.Text = strings.TrimSpace(s.Text)
	s.Caveat = strings.TrimSpace(s.Caveat)
	if s.Text == "" {
		return nil, badReply(Malformed, reply.Body, errors.New("empty summary"))
	}
	return &s, nil
}

func buildPrompt(f Facts, maxFactors int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resultado: %s\n", f.Verdict)
	fmt.Fprintf(&b, "Probabilidade estimada pelo modelo: %.0f%% (limiar %.0f%%)\n", f.Probability*100, f.Threshold*100)

	if len(f.Factors) == 0 {
		b.WriteString("Não há contribuições por variável disponíveis.\n")
		return b.String()
	}

	b.WriteString("Variáveis com maior influência:\n")
	for i, fac := range f.Factors {
		if i == maxFactors {
			break
		}
		dir := "aumentou"
		if fac.Value < 0 {
			dir = "reduziu"
		}
		fmt.Fprintf(&b, "- %s %s o risco (%+.3f)\n", fac.Name, dir, fac.Value)
	}
	return b.String()
}
