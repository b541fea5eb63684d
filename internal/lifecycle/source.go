// Package lifecycle models the host's coarse lifecycle as an event source
// with explicit, disposable subscriptions.
package lifecycle

import tea "github.com/charmbracelet/bubbletea"

// Event is a coarse host lifecycle event.
type Event int

const (
	ScopeStarted Event = iota
	ScopeStopped
	ScopeDestroyed
	HostResumed
)

func (e Event) String() string {
	switch e {
	case ScopeStarted:
		return "scopeStarted"
	case ScopeStopped:
		return "scopeStopped"
	case ScopeDestroyed:
		return "scopeDestroyed"
	case HostResumed:
		return "hostResumed"
	default:
		return "unknown"
	}
}

// Subscription is returned by Subscribe. Dispose is idempotent.
type Subscription struct {
	src    *Source
	events map[Event]bool
	fn     func(Event)
	live   bool
}

// Dispose unregisters the subscription. Safe to call more than once.
func (s *Subscription) Dispose() {
	if s == nil || !s.live {
		return
	}
	s.live = false
	subs := s.src.subs
	for i, other := range subs {
		if other == s {
			s.src.subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// Active reports whether the subscription has not been disposed.
func (s *Subscription) Active() bool {
	return s != nil && s.live
}

// Source fans lifecycle events out to subscribers on the UI loop.
type Source struct {
	subs      []*Subscription
	started   bool
	destroyed bool
}

// NewSource returns a source in the created, not yet started, scope.
func NewSource() *Source {
	return &Source{}
}

// Subscribe registers fn for the given events.
func (s *Source) Subscribe(fn func(Event), events ...Event) *Subscription {
	sub := &Subscription{src: s, events: make(map[Event]bool, len(events)), fn: fn, live: true}
	for _, e := range events {
		sub.events[e] = true
	}
	s.subs = append(s.subs, sub)
	return sub
}

// Emit delivers e to every live subscriber registered for it. Subscribers
// disposed by an earlier handler in the same Emit are skipped.
func (s *Source) Emit(e Event) {
	if s.destroyed {
		return
	}
	switch e {
	case ScopeStarted:
		s.started = true
	case ScopeStopped:
		s.started = false
	case ScopeDestroyed:
		s.started = false
		s.destroyed = true
	}
	subs := append([]*Subscription(nil), s.subs...)
	for _, sub := range subs {
		if sub.live && sub.events[e] {
			sub.fn(e)
		}
	}
	if s.destroyed {
		for _, sub := range s.subs {
			sub.live = false
		}
		s.subs = nil
	}
}

// Started reports whether the scope is active.
func (s *Source) Started() bool {
	return s.started
}

// Destroyed reports whether the scope has been destroyed.
func (s *Source) Destroyed() bool {
	return s.destroyed
}

// FromTea maps terminal focus reporting onto lifecycle events. Regaining
// focus both restarts the scope and counts as the host resuming.
func FromTea(msg tea.Msg) []Event {
	switch msg.(type) {
	case tea.FocusMsg:
		return []Event{ScopeStarted, HostResumed}
	case tea.BlurMsg:
		return []Event{ScopeStopped}
	default:
		return nil
	}
}
