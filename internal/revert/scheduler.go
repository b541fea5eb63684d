// Package revert implements a single-slot scheduler for UI mutations that
// are applied immediately and undone after a delay.
package revert

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Action is a reversible UI mutation.
type Action interface {
	Apply()
	Revert()
}

// Funcs adapts a pair of functions to Action.
type Funcs struct {
	ApplyFn  func()
	RevertFn func()
}

func (f Funcs) Apply() {
	if f.ApplyFn != nil {
		f.ApplyFn()
	}
}

func (f Funcs) Revert() {
	if f.RevertFn != nil {
		f.RevertFn()
	}
}

// ExpiredMsg is delivered when a scheduled reversal's delay elapses.
type ExpiredMsg struct {
	owner uint64
	seq   uint64
}

var owners atomic.Uint64

// Scheduler holds at most one pending reversal. It is driven from a Bubble
// Tea Update loop and is not safe for concurrent use.
type Scheduler struct {
	id      uint64
	seq     uint64
	pending Action
	tick    func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTicker replaces tea.Tick as the timer source.
func WithTicker(tick func(time.Duration, func(time.Time) tea.Msg) tea.Cmd) Option {
	return func(s *Scheduler) { s.tick = tick }
}

// New returns an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{id: owners.Add(1), tick: tea.Tick}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run applies a and schedules its reversal after delay. A reversal that is
// already pending is dropped without being reverted.
func (s *Scheduler) Run(a Action, delay time.Duration) tea.Cmd {
	s.drop()
	a.Apply()
	s.seq++
	s.pending = a
	msg := ExpiredMsg{owner: s.id, seq: s.seq}
	return s.tick(delay, func(time.Time) tea.Msg { return msg })
}

// RevertAll reverts the pending action immediately, if any.
func (s *Scheduler) RevertAll() {
	a := s.pending
	if a == nil {
		return
	}
	s.drop()
	a.Revert()
}

// Clear drops any pending reversal without reverting it. Used on teardown.
func (s *Scheduler) Clear() {
	s.drop()
}

// Pending reports whether a reversal is scheduled.
func (s *Scheduler) Pending() bool {
	return s.pending != nil
}

// Update fires the pending reversal when its own ExpiredMsg arrives. Stale
// or foreign messages are ignored. It reports whether msg was consumed.
func (s *Scheduler) Update(msg tea.Msg) bool {
	m, ok := msg.(ExpiredMsg)
	if !ok || m.owner != s.id {
		return false
	}
	if m.seq != s.seq || s.pending == nil {
		return true
	}
	a := s.pending
	s.pending = nil
	a.Revert()
	return true
}

// drop invalidates the in-flight timer by advancing the sequence.
func (s *Scheduler) drop() {
	s.pending = nil
	s.seq++
}
