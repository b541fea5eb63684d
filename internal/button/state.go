// Package button holds the visible state of the connect button and the
// machine that notifies observers when it changes.
package button

import "fmt"

// State is the visible state of the button.
type State int

const (
	Initial State = iota
	CreateAccount
	Login
	Enabled
	Disabled
)

var stateNames = [...]string{"Initial", "CreateAccount", "Login", "Enabled", "Disabled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name so persisted state survives
// reordering of the constants.
func (s State) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("button: invalid state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("button: unknown state %q", string(b))
}

// Observer is called with (next, previous) on every effective transition.
type Observer func(next, prev State)

// Machine is the button state machine. Any state may move to any other;
// observers only hear about transitions that change the value.
type Machine struct {
	current   State
	observers []*observerEntry
}

type observerEntry struct {
	fn Observer
}

// NewMachine returns a machine in the Initial state.
func NewMachine() *Machine {
	return &Machine{current: Initial}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// Observe registers fn and returns a function that removes it.
func (m *Machine) Observe(fn Observer) (remove func()) {
	e := &observerEntry{fn: fn}
	m.observers = append(m.observers, e)
	return func() {
		for i, o := range m.observers {
			if o == e {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Set moves to next and notifies observers synchronously if the value
// changed. It reports whether a notification happened.
func (m *Machine) Set(next State) bool {
	prev := m.current
	m.current = next
	if next == prev {
		return false
	}
	// Snapshot so observers may unregister during dispatch.
	obs := append([]*observerEntry(nil), m.observers...)
	for _, o := range obs {
		o.fn(next, prev)
	}
	return true
}

// Restore sets the state without notifying, for state restoration.
func (m *Machine) Restore(s State) {
	m.current = s
}
