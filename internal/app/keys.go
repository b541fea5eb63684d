package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the host's own keyboard bindings. Button keys live in
// connectbutton.KeyMap.
type KeyMap struct {
	Quit   key.Binding
	Force  key.Binding
	Debug  key.Binding
	Dark   key.Binding
	Reload key.Binding
	Escape key.Binding
	Up     key.Binding
	Down   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Force: key.NewBinding(
			key.WithKeys("ctrl+c"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "event log"),
		),
		Dark: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "background"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
	}
}
