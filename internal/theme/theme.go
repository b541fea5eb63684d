// Package theme provides the Lip Gloss colour palette and reusable styles
// for the Connect TUI. It is a leaf package with no internal imports to
// avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Button colours, as hex strings so they can be blended.
const (
	HexTrack         = "#000000"
	HexEmailTrackEnd = "#EEEEEE"
	HexProgress      = "#333333"
	HexLabel         = "#FFFFFF"
	HexEmailText     = "#111111"
	HexCheck         = "#FFFFFF"
	HexHelperLight   = "#6B6B6B"
	HexHelperDark    = "#BDBDBD"
	HexError         = "#E5484D"
	HexDefaultBrand  = "#222222"
	HexSurfaceLight  = "#FFFFFF"
	HexSurfaceDark   = "#111827"
)

// UI chrome colours.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Button state colours.
var (
	ColorInitial       = lipgloss.Color("#9ca3af")
	ColorCreateAccount = lipgloss.Color("#a855f7")
	ColorLogin         = lipgloss.Color("#3b82f6")
	ColorEnabled       = lipgloss.Color("#16a34a")
	ColorDisabled      = lipgloss.Color("#d97706")
)

// StateColor returns the colour for a button state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "Initial":
		return ColorInitial
	case "CreateAccount":
		return ColorCreateAccount
	case "Login":
		return ColorLogin
	case "Enabled":
		return ColorEnabled
	case "Disabled":
		return ColorDisabled
	default:
		return ColorDimmed
	}
}

// StateGlyph returns a Unicode glyph for a button state name.
func StateGlyph(state string) string {
	switch state {
	case "Initial":
		return "○"
	case "CreateAccount":
		return "✚"
	case "Login":
		return "◎"
	case "Enabled":
		return "●"
	case "Disabled":
		return "◌"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)
)
