// Package errdialog is the modal shown when an assessment cannot be made.
package errdialog

import (
	"errors"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/router"
	"github.com/abhisek/diarisk/internal/screen"
	"github.com/abhisek/diarisk/internal/ui/layout"
	"github.com/abhisek/diarisk/internal/ui/theme"
)

// Heading is the fixed first line of the dialog.
const Heading = "Verifique os dados inseridos."

// Dialog shows Heading and the error text. Dismissing it pops back to the
// screen underneath, which keeps its state.
type Dialog struct {
	err error
}

var _ screen.Screen = (*Dialog)(nil)
var _ screen.KeyHintProvider = (*Dialog)(nil)

// New creates a dialog for err.
func New(err error) *Dialog {
	return &Dialog{err: err}
}

func (d *Dialog) Init() tea.Cmd {
	return nil
}

func (d *Dialog) Title() string {
	return "Erro"
}

func (d *Dialog) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "OK"},
		{Key: "Esc", Description: "Voltar"},
	}
}

func (d *Dialog) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc", "q", "space":
			return d, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return d, nil
}

// Lines returns the detail lines shown under the heading: one per field
// problem for validation errors, otherwise the error text.
func (d *Dialog) Lines() []string {
	if d.err == nil {
		return nil
	}
	var verr *features.ValidationError
	if errors.As(d.err, &verr) && verr.HasProblems() {
		lines := make([]string, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			lines = append(lines, "• "+p.Label+": "+p.Message)
		}
		return lines
	}
	return []string{d.err.Error()}
}

func (d *Dialog) View(width, height int) string {
	inner := min(width-10, 70)
	if inner < 20 {
		inner = 20
	}

	heading := lipgloss.NewStyle().Foreground(theme.Error).Bold(true).Render(Heading)
	detail := lipgloss.NewStyle().Foreground(theme.Text).Width(inner).
		Render(strings.Join(d.Lines(), "\n"))
	hint := theme.Hint.Render("Enter para voltar ao formulário")

	box := theme.ErrorModal.Render(lipgloss.JoinVertical(lipgloss.Left,
		heading, "", detail, "", hint))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
