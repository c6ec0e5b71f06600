package components

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/ui/theme"
)

// Select is a read-only combo box: the value is always one of Options and
// changes with ←/→. The first option is selected initially.
type Select struct {
	Options  []string
	Selected int
	Focused  bool
}

// NewSelect creates a selector over options.
func NewSelect(options []string) Select {
	return Select{Options: options}
}

// Update cycles the selection while focused.
func (s Select) Update(msg tea.Msg) (Select, tea.Cmd) {
	if !s.Focused || len(s.Options) == 0 {
		return s, nil
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}

	switch kmsg.String() {
	case "left", "h":
		s.Selected = (s.Selected - 1 + len(s.Options)) % len(s.Options)
	case "right", "l", "space":
		s.Selected = (s.Selected + 1) % len(s.Options)
	case "home":
		s.Selected = 0
	case "end":
		s.Selected = len(s.Options) - 1
	}
	return s, nil
}

// Value returns the selected option, or "" for an empty selector.
func (s Select) Value() string {
	if s.Selected < 0 || s.Selected >= len(s.Options) {
		return ""
	}
	return s.Options[s.Selected]
}

// SetValue selects v if it is one of the options and reports whether it was.
func (s *Select) SetValue(v string) bool {
	for i, o := range s.Options {
		if o == v {
			s.Selected = i
			return true
		}
	}
	return false
}

// View renders the selector.
func (s Select) View() string {
	value := s.Value()
	if !s.Focused {
		return lipgloss.NewStyle().Foreground(theme.Text).Render("  " + value)
	}
	arrow := lipgloss.NewStyle().Foreground(theme.TextDim)
	return arrow.Render("‹ ") +
		lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(value) +
		arrow.Render(" ›")
}
