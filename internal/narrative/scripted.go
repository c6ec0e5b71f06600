package narrative

import (
	"context"
	"errors"
	"sync"
)

// Step is one scripted answer: Err when set, Body otherwise.
type Step struct {
	Body   string
	Tokens Tokens
	Err    error
}

// Scripted is a Backend that plays back its steps in order and remembers
// every prompt it was sent. Once the script runs out it answers with
// Fallback, or fails as Unavailable when there is none.
type Scripted struct {
	Fallback string

	mu      sync.Mutex
	steps   []Step
	prompts []Prompt
}

// Script returns a Scripted backend playing steps.
func Script(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Complete(_ context.Context, p Prompt) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)

	var next Step
	switch {
	case len(s.steps) > 0:
		next, s.steps = s.steps[0], s.steps[1:]
	case s.Fallback != "":
		next = Step{Body: s.Fallback}
	default:
		return nil, failure(Unavailable, errors.New("script exhausted"))
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &Reply{Body: []byte(next.Body), Model: s.Model(), Tokens: next.Tokens}, nil
}

func (s *Scripted) Model() string { return "mock" }

// Prompts returns the prompts received so far.
func (s *Scripted) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.prompts...)
}
