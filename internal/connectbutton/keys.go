package connectbutton

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard access to the button.
type KeyMap struct {
	Tap      key.Binding
	Submit   key.Binding
	FlingOn  key.Binding
	FlingOff key.Binding
	About    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tap: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "tap"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "continue"),
		),
		FlingOn: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "slide on"),
		),
		FlingOff: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "slide off"),
		),
		About: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "about"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tap, k.FlingOn, k.FlingOff, k.About}
}
