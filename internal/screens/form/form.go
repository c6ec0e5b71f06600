// Package form is the data-entry screen: one row per schema field, a
// submit button and a tip line.
package form

import (
	"context"
	"errors"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/diarisk/internal/assess"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/router"
	"github.com/abhisek/diarisk/internal/screen"
	"github.com/abhisek/diarisk/internal/screens/errdialog"
	"github.com/abhisek/diarisk/internal/screens/history"
	"github.com/abhisek/diarisk/internal/screens/result"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/abhisek/diarisk/internal/ui/components"
	"github.com/abhisek/diarisk/internal/ui/layout"
)

// Fixed texts of the form.
const (
	ButtonLabel = "Verificar Diabetes"
	BusyLabel   = "Verificando..."
	Tip         = "Preencha todos os campos antes de verificar."
)

const inputWidth = 12

// Assessor runs one assessment. *assess.Service satisfies it.
type Assessor interface {
	Assess(ctx context.Context, in features.FormInput) (*assess.Outcome, error)
	Schema() features.Schema
}

// row is one field's widget; exactly one of choice or input is used.
type row struct {
	field  features.Field
	choice components.Select
	input  components.TextInput
}

func (r *row) value() string {
	if r.field.Kind == features.KindChoice {
		return r.choice.Value()
	}
	return r.input.Value()
}

// Screen is the form. Submitting runs the assessment as a command; while
// it is in flight further submissions are ignored.
type Screen struct {
	assessor Assessor
	history  store.PredictionRepo
	schema   features.Schema

	rows    []row
	button  components.Button
	focus   int // len(rows) is the button
	pending bool
	lastErr error
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)

// New creates the form for assessor's schema. history may be nil, in which
// case the history shortcut is disabled.
func New(assessor Assessor, history store.PredictionRepo) *Screen {
	s := &Screen{
		assessor: assessor,
		history:  history,
		schema:   assessor.Schema(),
	}

	defaults := s.schema.Defaults()
	for _, f := range s.schema.Fields {
		r := row{field: f}
		if f.Kind == features.KindChoice {
			r.choice = components.NewSelect(f.Options)
			r.choice.SetValue(defaults[f.Key])
		} else {
			r.input = components.NewTextInput("", true, inputWidth)
		}
		s.rows = append(s.rows, r)
	}

	s.button = components.NewButton(ButtonLabel, false, s.submit)
	s.button.BusyLabel = BusyLabel
	return s
}

func (s *Screen) Init() tea.Cmd {
	return s.setFocus(0)
}

func (s *Screen) Title() string {
	return "Avaliação de Risco de Diabetes"
}

func (s *Screen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{
		{Key: "Tab/↑↓", Description: "Campo"},
		{Key: "←→", Description: "Opção"},
		{Key: "Ctrl+S", Description: "Verificar"},
	}
	if s.history != nil {
		hints = append(hints, layout.KeyHint{Key: "Ctrl+H", Description: "Histórico"})
	}
	return append(hints, layout.KeyHint{Key: "Ctrl+C", Description: "Sair"})
}

// Input returns the current field values.
func (s *Screen) Input() features.FormInput {
	in := make(features.FormInput, len(s.rows))
	for i := range s.rows {
		in[s.rows[i].field.Key] = s.rows[i].value()
	}
	return in
}

// Pending reports whether an assessment is in flight.
func (s *Screen) Pending() bool {
	return s.pending
}

// Focus returns the focused row index; len(schema.Fields) is the button.
func (s *Screen) Focus() int {
	return s.focus
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case assessedMsg:
		return s, s.handleAssessed(msg)

	case router.ResumedMsg:
		// Back from the error dialog: put the cursor on the first field
		// to fix.
		for i := range s.rows {
			if s.rows[i].field.Kind == features.KindNumeric && s.rows[i].input.Invalid() {
				return s, s.setFocus(i)
			}
		}
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "down":
			return s, s.setFocus(s.focus + 1)
		case "shift+tab", "up":
			return s, s.setFocus(s.focus - 1)
		case "ctrl+s":
			return s, s.submit()
		case "ctrl+r":
			return s, s.reset()
		case "ctrl+h":
			if s.history == nil || s.pending {
				return s, nil
			}
			h := history.New(s.history, s.schema)
			return s, func() tea.Msg { return router.PushScreenMsg{Screen: h} }
		case "enter":
			if s.focus < len(s.rows) {
				return s, s.setFocus(s.focus + 1)
			}
		}
	}

	return s, s.updateFocused(msg)
}

func (s *Screen) updateFocused(msg tea.Msg) tea.Cmd {
	if s.focus == len(s.rows) {
		var cmd tea.Cmd
		s.button, cmd = s.button.Update(msg)
		return cmd
	}

	r := &s.rows[s.focus]
	var cmd tea.Cmd
	if r.field.Kind == features.KindChoice {
		r.choice, cmd = r.choice.Update(msg)
	} else {
		r.input, cmd = r.input.Update(msg)
	}
	return cmd
}

// setFocus moves focus to i, wrapping around the rows and the button.
func (s *Screen) setFocus(i int) tea.Cmd {
	n := len(s.rows) + 1
	s.focus = ((i % n) + n) % n

	var cmd tea.Cmd
	for j := range s.rows {
		r := &s.rows[j]
		focused := j == s.focus
		if r.field.Kind == features.KindChoice {
			r.choice.Focused = focused
			continue
		}
		if focused {
			cmd = r.input.Focus()
		} else {
			r.input.Blur()
		}
	}
	s.button.Active = s.focus == len(s.rows)
	return cmd
}

func (s *Screen) submit() tea.Cmd {
	if s.pending {
		return nil
	}
	s.pending = true
	s.button.Busy = true

	assessor := s.assessor
	in := s.Input()
	return func() tea.Msg {
		out, err := assessor.Assess(context.Background(), in)
		return assessedMsg{Outcome: out, Err: err}
	}
}

func (s *Screen) handleAssessed(msg assessedMsg) tea.Cmd {
	s.pending = false
	s.button.Busy = false
	s.lastErr = msg.Err

	var verr *features.ValidationError
	hasProblems := errors.As(msg.Err, &verr)
	for i := range s.rows {
		r := &s.rows[i]
		if r.field.Kind == features.KindNumeric {
			r.input.MarkInvalid(hasProblems && verr.Has(r.field.Key))
		}
	}

	var next screen.Screen
	if msg.Err != nil {
		next = errdialog.New(msg.Err)
	} else {
		next = result.New(msg.Outcome, s.schema)
	}
	return func() tea.Msg { return router.PushScreenMsg{Screen: next} }
}

func (s *Screen) reset() tea.Cmd {
	if s.pending {
		return nil
	}
	defaults := s.schema.Defaults()
	for i := range s.rows {
		r := &s.rows[i]
		if r.field.Kind == features.KindChoice {
			r.choice.SetValue(defaults[r.field.Key])
			continue
		}
		r.input.SetValue("")
		r.input.MarkInvalid(false)
	}
	s.lastErr = nil
	return s.setFocus(0)
}
