package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/atoreson/schemadiff/internal/config"
)

const (
	fieldScript = iota
	fieldHost
	fieldPort
	fieldDatabase
	fieldSchema
	fieldUsername
	fieldPassword
	fieldCount
)

var fieldLabels = []string{"Script path", "Host", "Port", "Database", "Schema", "Username", "Password"}

// SideModel is the bubbletea model for one side of the comparison: either a
// DDL script path, or a live connection's host/port/database/schema/
// credentials. Leaving Script blank selects the connection fields.
type SideModel struct {
	label   string
	dialect string
	inputs  []textinput.Model
	focused int
	done    bool
	cancel  bool
}

func NewSideModel(label, dialect string) SideModel {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = fieldLabels[i]
		inputs[i].CharLimit = 256
	}
	inputs[fieldPort].Placeholder = fmt.Sprintf("%d", defaultPort(dialect))
	inputs[fieldPort].CharLimit = 5
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '*'
	inputs[fieldScript].Focus()

	return SideModel{label: label, dialect: dialect, inputs: inputs, focused: fieldScript}
}

func defaultPort(dialect string) int {
	switch dialect {
	case "mysql":
		return 3306
	case "postgres":
		return 5432
	case "mssql":
		return 1433
	case "oracle":
		return 1521
	case "db2":
		return 50000
	default:
		return 0
	}
}

func (m SideModel) Init() tea.Cmd { return textinput.Blink }

func (m SideModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "esc":
			m.cancel = true
			m.done = true
			return m, tea.Quit

		case "tab", "down":
			m.focused = (m.focused + 1) % fieldCount
			return m, m.updateFocus()

		case "shift+tab", "up":
			m.focused = (m.focused - 1 + fieldCount) % fieldCount
			return m, m.updateFocus()

		case "enter":
			if m.focused == fieldPassword {
				m.done = true
				return m, tea.Quit
			}
			m.focused = (m.focused + 1) % fieldCount
			return m, m.updateFocus()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m SideModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.label) + "\n\n")
	for i, label := range fieldLabels {
		cursor := "  "
		if i == m.focused {
			cursor = highlightStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, dimStyle.Render(fmt.Sprintf("%-12s", label)), m.inputs[i].View())
	}
	b.WriteString("\n" + dimStyle.Render("  tab/shift-tab to navigate, enter on Password to confirm, esc to cancel\n"))
	b.WriteString(dimStyle.Render("  leave Script path blank to use a live connection instead\n"))
	return b.String()
}

func (m *SideModel) updateFocus() tea.Cmd {
	cmds := make([]tea.Cmd, fieldCount)
	for i := range m.inputs {
		if i == m.focused {
			cmds[i] = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return tea.Batch(cmds...)
}

func (m SideModel) Cancelled() bool { return m.cancel }

// Config assembles the entered fields into a config.SideConfig.
func (m SideModel) Config() config.SideConfig {
	side := config.SideConfig{
		Script:   m.inputs[fieldScript].Value(),
		Host:     m.inputs[fieldHost].Value(),
		Database: m.inputs[fieldDatabase].Value(),
		Schema:   m.inputs[fieldSchema].Value(),
		Username: m.inputs[fieldUsername].Value(),
		Password: m.inputs[fieldPassword].Value(),
	}
	if side.Host == "" {
		side.Host = "localhost"
	}
	side.Port = defaultPort(m.dialect)
	if portStr := m.inputs[fieldPort].Value(); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			side.Port = p
		}
	}
	return side
}
