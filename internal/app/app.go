package app

import (
	"errors"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/diarisk/internal/router"
	"github.com/abhisek/diarisk/internal/screen"
	"github.com/abhisek/diarisk/internal/screens/form"
	"github.com/abhisek/diarisk/internal/ui/layout"
)

// StatusBusy is shown in the header while the active screen works.
const StatusBusy = "verificando…"

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	log    *zap.Logger
	width  int
	height int
}

// newAppModel creates a new AppModel with the form screen at the bottom of
// the stack.
func newAppModel(state State) AppModel {
	log := state.Log
	if log == nil {
		log = zap.NewNop()
	}
	return AppModel{
		router: router.New(form.New(state.Assessor, state.History)),
		log:    log,
	}
}

func (m AppModel) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}

	case router.PushScreenMsg:
		m.log.Debug("push screen", zap.String("screen", msg.Screen.Title()))
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	header := layout.Header{}
	if active != nil {
		header.Title = active.Title()
		v.WindowTitle = "Diarisk · " + header.Title
	}
	if b, ok := active.(screen.Busy); ok && b.Pending() {
		header.Status = StatusBusy
	}

	top := header.Render(m.width)
	footer := layout.RenderFooter(m.footerHints(active), m.width)
	content := m.router.View(m.width, layout.ContentHeight(top, footer, m.height))
	frame := layout.RenderFrame(top, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

func (m AppModel) footerHints(active screen.Screen) []layout.KeyHint {
	if p, ok := active.(screen.KeyHintProvider); ok {
		return p.KeyHints()
	}
	if m.router.Depth() > 1 {
		return []layout.KeyHint{
			{Key: "Esc", Description: "Voltar"},
			{Key: "Ctrl+C", Description: "Sair"},
		}
	}
	return []layout.KeyHint{
		{Key: "Ctrl+C", Description: "Sair"},
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(state State, opts ...tea.ProgramOption) error {
	if state.Assessor == nil {
		return errors.New("app: no assessor configured")
	}
	p := tea.NewProgram(newAppModel(state), opts...)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
