package narrative

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/abhisek/diarisk/internal/store"
	"go.uber.org/zap"
)

// journaled appends every completion, failed or not, to the LLM request
// log. A failing journal is only logged.
type journaled struct {
	next     Backend
	provider string
	events   store.EventRepo
	log      *zap.Logger
}

func (j *journaled) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	began := time.Now()
	reply, err := j.next.Complete(ctx, p)

	ev := store.LLMRequestEventData{
		Provider:    j.provider,
		Model:       j.next.Model(),
		Purpose:     purposeOf(ctx),
		LatencyMs:   time.Since(began).Milliseconds(),
		Success:     err == nil,
		RequestBody: transcript(p),
	}
	if reply != nil {
		ev.Model = reply.Model
		ev.InputTokens = reply.Tokens.In
		ev.OutputTokens = reply.Tokens.Out
		ev.ResponseBody = string(reply.Body)
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		j.log.Warn("llm completion failed",
			zap.String("provider", j.provider),
			zap.String("model", ev.Model),
			zap.Error(err))
	}

	if j.events != nil {
		// The caller may have given up on ctx already.
		if jerr := j.events.AppendLLMRequest(context.WithoutCancel(ctx), ev); jerr != nil {
			j.log.Warn("journal llm request", zap.Error(jerr))
		}
	}
	return reply, err
}

func (j *journaled) Model() string { return j.next.Model() }

// transcript renders p the way `diarisk llm view` shows it.
func transcript(p Prompt) string {
	var b strings.Builder
	section := func(title, body string) {
		b.WriteString("## " + title + "\n" + body + "\n\n")
	}
	if p.Instructions != "" {
		section("instructions", p.Instructions)
	}
	section("input", p.Input)
	if p.Output != nil {
		if def, err := json.Marshal(p.Output.Schema); err == nil {
			section("output "+p.Output.Name, string(def))
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
