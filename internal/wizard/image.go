package wizard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ImageModel prompts for the container image used to materialise a DDL
// script side; only shown when at least one side is a script.
type ImageModel struct {
	input  textinput.Model
	done   bool
	cancel bool
}

func NewImageModel() ImageModel {
	in := textinput.New()
	in.Placeholder = "leave blank for the dialect's default image"
	in.CharLimit = 256
	in.Focus()
	return ImageModel{input: in}
}

func (m ImageModel) Init() tea.Cmd { return textinput.Blink }

func (m ImageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "esc":
			m.cancel = true
			m.done = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ImageModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Step 4: Container image") + "\n\n")
	b.WriteString("  " + m.input.View() + "\n\n")
	b.WriteString(dimStyle.Render("  enter to confirm, esc to cancel\n"))
	return b.String()
}

func (m ImageModel) Cancelled() bool { return m.cancel }
func (m ImageModel) Image() string   { return m.input.Value() }
