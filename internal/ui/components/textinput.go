package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/ui/theme"
)

// numericRunes are the characters a NumericOnly input accepts. Both decimal
// separators are allowed; parsing normalizes them.
const numericRunes = "0123456789.,"

// TextInput wraps bubbles/textinput with Diarisk styling.
type TextInput struct {
	Model       textinput.Model
	NumericOnly bool
	MaxWidth    int
	invalid     bool
}

// NewTextInput creates a new styled text input. It starts blurred.
func NewTextInput(placeholder string, numericOnly bool, maxWidth int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""

	st := ti.Styles()
	st.Cursor.Blink = false
	st.Cursor.Color = theme.Primary
	ti.SetStyles(st)

	if maxWidth > 0 {
		ti.CharLimit = maxWidth
		ti.SetWidth(maxWidth)
	}

	return TextInput{
		Model:       ti,
		NumericOnly: numericOnly,
		MaxWidth:    maxWidth,
	}
}

// Focus gives the input keyboard focus.
func (t *TextInput) Focus() tea.Cmd {
	return t.Model.Focus()
}

// Blur removes keyboard focus.
func (t *TextInput) Blur() {
	t.Model.Blur()
}

// Focused reports whether the input has focus.
func (t TextInput) Focused() bool {
	return t.Model.Focused()
}

// Update handles messages. A NumericOnly input drops key presses that would
// insert anything other than digits and decimal separators.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if t.NumericOnly {
		switch m := msg.(type) {
		case tea.KeyPressMsg:
			if m.Text != "" && strings.Trim(m.Text, numericRunes) != "" {
				return t, nil
			}
		case tea.PasteMsg:
			m.Content = strings.Map(keepNumeric, m.Content)
			msg = m
		}
	}

	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	if _, ok := msg.(tea.KeyPressMsg); ok {
		t.invalid = false
	}
	return t, cmd
}

func keepNumeric(r rune) rune {
	if strings.ContainsRune(numericRunes, r) {
		return r
	}
	return -1
}

// View renders the text input.
func (t TextInput) View() string {
	view := t.Model.View()
	if t.invalid {
		view += " " + lipgloss.NewStyle().Foreground(theme.Error).Render("✗")
	}
	return view
}

// Value returns the current input value.
func (t TextInput) Value() string {
	return t.Model.Value()
}

// SetValue replaces the input value.
func (t *TextInput) SetValue(v string) {
	t.Model.SetValue(v)
}

// MarkInvalid flags the input until the next key press edits it.
func (t *TextInput) MarkInvalid(invalid bool) {
	t.invalid = invalid
}

// Invalid reports whether the input is flagged.
func (t TextInput) Invalid() bool {
	return t.invalid
}
