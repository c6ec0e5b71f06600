package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/diarisk/internal/ui/layout"
)

// Screen is one entry on the router stack: the form, a result, a dialog.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the area between header and footer.
	View(width, height int) string

	// Title is shown in the header and the terminal window title.
	Title() string
}

// KeyHintProvider replaces the default footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// Busy is implemented by screens that run work in the background. While
// Pending reports true the header shows a status note.
type Busy interface {
	Pending() bool
}
