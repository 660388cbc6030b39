package wizard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

var dialects = []string{"mysql", "postgres", "mssql", "oracle", "db2"}

// DialectModel is the bubbletea model for picking the shared dialect both
// sides of the comparison are extracted with.
type DialectModel struct {
	choice int
	done   bool
	cancel bool
}

func NewDialectModel() DialectModel {
	return DialectModel{}
}

func (m DialectModel) Init() tea.Cmd { return nil }

func (m DialectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.cancel = true
		m.done = true
		return m, tea.Quit
	case "up", "shift+tab":
		m.choice = (m.choice - 1 + len(dialects)) % len(dialects)
	case "down", "tab":
		m.choice = (m.choice + 1) % len(dialects)
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m DialectModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Step 1: Database dialect") + "\n\n")
	for i, d := range dialects {
		cursor := "  "
		label := d
		if i == m.choice {
			cursor = highlightStyle.Render("> ")
			label = highlightStyle.Render(d)
		}
		fmt.Fprintf(&b, "%s%s\n", cursor, label)
	}
	b.WriteString("\n" + dimStyle.Render("  up/down to choose, enter to confirm, esc to cancel\n"))
	return b.String()
}

func (m DialectModel) Cancelled() bool { return m.cancel }
func (m DialectModel) Dialect() string { return dialects[m.choice] }
