package connectbutton

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/connect-button/connect/internal/anim"
	"github.com/connect-button/connect/internal/gesture"
	"github.com/connect-button/connect/internal/theme"
)

const (
	glyphPlaceholder = "◌"
	glyphEmail       = "→"
	glyphCheck       = "✓"
	maxIconRunes     = 2
)

// View draws the button: a three row track, an optional border on dark
// hosts and the helper line underneath.
func (w *Widget) View() string {
	var body string
	if o := w.anims.TopOverlay(anim.OverlayProgress); o != nil {
		body = w.overlayView(o)
	} else {
		body = w.trackView()
	}
	if w.dark {
		body = theme.StyleBorder.Render(body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, w.helperView())
}

func (w *Widget) surface() string {
	if w.dark {
		return theme.HexSurfaceDark
	}
	return theme.HexSurfaceLight
}

func (w *Widget) trackView() string {
	bg := gesture.Fade(w.trackColor, w.surface(), w.trackAlpha)
	if w.mode == modeEmail {
		bg = gesture.Blend(bg, theme.HexEmailTrackEnd, w.emailAlpha)
	}
	left := min(max(int(w.drag.Left()+0.5), 0), max(w.trackWidth-w.handleWidth, 0))
	right := max(w.trackWidth-left-w.handleWidth, 0)

	fill := lipgloss.NewStyle().Background(lipgloss.Color(bg))
	handle := lipgloss.NewStyle().
		Background(lipgloss.Color(theme.HexLabel)).
		Foreground(lipgloss.Color(theme.HexTrack))

	blank := fill.Render(strings.Repeat(" ", left)) +
		handle.Render(strings.Repeat(" ", w.handleWidth)) +
		fill.Render(strings.Repeat(" ", right))

	var leftText, rightText string
	switch {
	case w.mode == modeEmail && w.emailAlpha > 0:
		leftText = w.emailView(left, bg)
	case left >= right:
		leftText = w.labelView(left, bg)
	default:
		rightText = w.labelView(right, bg)
	}
	if leftText == "" {
		leftText = fill.Render(strings.Repeat(" ", left))
	}
	if rightText == "" {
		rightText = fill.Render(strings.Repeat(" ", right))
	}
	middle := leftText +
		handle.Width(w.handleWidth).Align(lipgloss.Center).Render(w.glyph()) +
		rightText

	return lipgloss.JoinVertical(lipgloss.Left, blank, middle, blank)
}

func (w *Widget) labelView(width int, bg string) string {
	if width <= 0 || w.label == "" {
		return ""
	}
	fg := gesture.Fade(theme.HexLabel, bg, w.labelAlpha)
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(fg)).
		Render(fit(w.label, width-2))
}

func (w *Widget) emailView(width int, bg string) string {
	if width <= 0 {
		return ""
	}
	in := w.email
	in.Width = max(width-3, 1)
	fg := lipgloss.Color(gesture.Fade(theme.HexEmailText, bg, w.emailAlpha))
	in.TextStyle = lipgloss.NewStyle().Foreground(fg).Background(lipgloss.Color(bg))
	in.PlaceholderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(gesture.Fade(theme.HexHelperLight, bg, w.emailAlpha))).
		Background(lipgloss.Color(bg))
	return lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color(bg)).
		PaddingLeft(1).
		Render(fit(in.View(), width-1))
}

func (w *Widget) glyph() string {
	if w.mode == modeEmail {
		return glyphEmail
	}
	if len(w.icon) == 0 {
		return glyphPlaceholder
	}
	if utf8.Valid(w.icon) && utf8.RuneCount(w.icon) <= maxIconRunes {
		if s := strings.TrimSpace(string(w.icon)); s != "" {
			return s
		}
	}
	r, _ := utf8.DecodeRuneInString(w.service.Name)
	if r == utf8.RuneError {
		return glyphPlaceholder
	}
	return string(unicode.ToUpper(r))
}

// overlayView draws a progress overlay over the whole track, with the
// check mark on the bottom row when one is showing.
func (w *Widget) overlayView(o *anim.Overlay) string {
	surface := w.surface()
	track := gesture.Fade(o.Track, surface, o.Alpha)

	rowStyle := lipgloss.NewStyle().
		Width(w.trackWidth).
		Align(lipgloss.Center).
		Background(lipgloss.Color(track)).
		Foreground(lipgloss.Color(gesture.Fade(theme.HexLabel, track, o.Alpha)))
	top := rowStyle.Render(fit(o.Text, w.trackWidth-2))

	bar := w.bar
	bar.Width = w.trackWidth
	bar.FullColor = gesture.Fade(o.Color, surface, o.Alpha)
	bar.EmptyColor = track
	middle := bar.ViewAs(o.Progress)

	bottom := rowStyle.Render("")
	if c := w.anims.TopOverlay(anim.OverlayCheckMark); c != nil {
		col := min(max(c.Offset+w.handleWidth/2, 0), w.trackWidth-1)
		mark := lipgloss.NewStyle().
			Background(lipgloss.Color(track)).
			Foreground(lipgloss.Color(gesture.Fade(theme.HexCheck, track, c.Alpha))).
			Render(glyphCheck)
		pad := lipgloss.NewStyle().Background(lipgloss.Color(track))
		bottom = pad.Render(strings.Repeat(" ", col)) + mark +
			pad.Render(strings.Repeat(" ", w.trackWidth-col-1))
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, middle, bottom)
}

func (w *Widget) helperView() string {
	width := w.trackWidth
	if w.dark {
		width += 2
	}
	text, color := w.helper, theme.HexHelperLight
	switch {
	case w.helperErr:
		text, color = helperBadEmail, theme.HexError
	case w.dark:
		color = theme.HexHelperDark
	}
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(lipgloss.Color(color)).
		Render(fit(text, width))
}

// fit truncates s to width cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}
