package status

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected    bool // websocket
	APIErr       string
	State        button.State
	ConnectionID string
	Width        int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	var conn string
	if m.Connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	} else {
		conn = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	name := m.State.String()
	state := lipgloss.NewStyle().
		Foreground(theme.StateColor(name)).
		Render(theme.StateGlyph(name) + " " + name)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := conn + sep + state
	if m.ConnectionID != "" {
		content += sep + theme.StyleDimmed.Render(m.ConnectionID)
	}
	if m.APIErr != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.APIErr)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
