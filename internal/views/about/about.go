// Package about renders the About panel for a connection from markdown.
package about

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/connect-button/connect/internal/connection"
	"github.com/connect-button/connect/internal/theme"
)

// Model holds the About panel state.
type Model struct {
	conn  connection.Connection
	style string
}

// New creates an About panel rendered with the given glamour standard
// style ("dark", "light", "notty", ...).
func New(style string) Model {
	if style == "" {
		style = "dark"
	}
	return Model{style: style}
}

// SetConnection replaces the connection the panel describes.
func (m *Model) SetConnection(c connection.Connection) {
	m.conn = c.Clone()
}

// Markdown is the panel source.
func (m Model) Markdown() string {
	var b strings.Builder
	name := m.conn.Name
	if name == "" {
		name = "Connect"
	}
	fmt.Fprintf(&b, "# %s\n\n", name)
	if m.conn.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", m.conn.Description)
	}
	if len(m.conn.Services) > 0 {
		b.WriteString("## Works with\n\n")
		for _, s := range m.conn.Services {
			if s.Primary {
				fmt.Fprintf(&b, "- **%s**\n", s.Name)
			} else {
				fmt.Fprintf(&b, "- %s\n", s.Name)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("Slide the button to turn the connection on or off. ")
	b.WriteString("Turning it on opens a sign-in page in your browser.\n")
	return b.String()
}

// View renders the panel inside a border.
func (m Model) View(width int) string {
	innerW := max(width-6, 20)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(innerW-4),
	)
	body := m.Markdown()
	if err == nil {
		if out, err := r.Render(body); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	help := theme.StyleDimmed.Render("esc:close")
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(0, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, body, "", help))
}
