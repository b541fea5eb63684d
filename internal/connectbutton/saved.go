package connectbutton

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/connection"
)

// SavedState is what survives the host being recreated.
type SavedState struct {
	State      button.State           `json:"state"`
	Connection *connection.Connection `json:"connection,omitempty"`
}

// Save captures the button state and the rendered connection.
func (w *Widget) Save() SavedState {
	s := SavedState{State: w.machine.Current()}
	if w.conn != nil {
		c := w.conn.Clone()
		s.Connection = &c
	}
	return s
}

// Restore renders the saved connection and puts the machine back in the
// saved state without notifying listeners. It panics if Setup has not been
// called.
func (w *Widget) Restore(s SavedState) tea.Cmd {
	w.mustSetup("Restore")
	if s.Connection != nil {
		w.abandon()
		w.render(*s.Connection)
	}
	w.machine.Restore(s.State)
	return w.flush()
}
