// Package anim sequences the button's transient animations and keeps them
// scoped to the host lifecycle: every animation started through a
// Supervisor is cancelled when the scope stops, and end handlers can see
// whether they are running because of a cancellation.
package anim

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"

	"github.com/connect-button/connect/internal/lifecycle"
)

// Kind is the finite set of step kinds the button uses.
type Kind int

const (
	KindSlideHandle Kind = iota
	KindFadeLabel
	KindRevealEmail
	KindProgress
	KindCountdown
	KindCheckMark
	KindFadeOverlays
)

func (k Kind) String() string {
	switch k {
	case KindSlideHandle:
		return "slide"
	case KindFadeLabel:
		return "fade-label"
	case KindRevealEmail:
		return "reveal-email"
	case KindProgress:
		return "progress"
	case KindCountdown:
		return "countdown"
	case KindCheckMark:
		return "check"
	case KindFadeOverlays:
		return "fade-overlays"
	default:
		return "?"
	}
}

// Step describes one timed stage of a sequence. Steps of a sequence run one
// after another; effects that play together live in the same step's
// OnUpdate.
type Step struct {
	Kind     Kind
	Duration time.Duration
	Delay    time.Duration
	Ease     Ease

	OnStart  func(a *Animation)
	OnUpdate func(f float64)
	OnCancel func(a *Animation)
	// OnEnd runs after completion and after cancellation. Handlers that
	// mutate shared state must check a.Canceled() first.
	OnEnd func(a *Animation)
}

// Animation is a running sequence.
type Animation struct {
	id       uint64
	steps    []Step
	idx      int
	stepAt   time.Time
	started  bool
	canceled bool
	done     bool
	onDone   []func(a *Animation)
}

// Canceled reports whether the animation was cancelled.
func (a *Animation) Canceled() bool { return a.canceled }

// Running reports whether the animation has neither finished nor been cancelled.
func (a *Animation) Running() bool { return a != nil && !a.done }

// Kind returns the kind of the current step.
func (a *Animation) Kind() Kind {
	if a.idx < len(a.steps) {
		return a.steps[a.idx].Kind
	}
	return a.steps[len(a.steps)-1].Kind
}

// OnDone registers fn to run once the whole sequence ends, after the last
// step's OnEnd or after cancellation. Registering on a finished animation
// runs fn immediately.
func (a *Animation) OnDone(fn func(a *Animation)) {
	if a.done {
		fn(a)
		return
	}
	a.onDone = append(a.onDone, fn)
}

// FrameMsg drives all animations of one supervisor.
type FrameMsg struct {
	owner uint64
}

// DefaultFPS is the frame rate used for animation ticks.
const DefaultFPS = 60

var owners atomic.Uint64

// Ticker schedules a message after a delay. tea.Tick is the default.
type Ticker = func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

// Supervisor owns the set of in-flight animations and the overlays they
// draw. It must only be used from the UI loop.
type Supervisor struct {
	id       uint64
	now      func() time.Time
	frame    time.Duration
	active   []*Animation
	nextID   uint64
	ticking  bool
	tick     Ticker
	overlays []*Overlay
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// WithTicker overrides the frame timer.
func WithTicker(t Ticker) Option {
	return func(s *Supervisor) { s.tick = t }
}

// WithFPS sets the frame rate.
func WithFPS(fps int) Option {
	return func(s *Supervisor) {
		s.frame = time.Duration(harmonica.FPS(fps) * float64(time.Second))
	}
}

// NewSupervisor returns an empty supervisor.
func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		id:    owners.Add(1),
		now:   time.Now,
		tick:  tea.Tick,
		frame: time.Duration(harmonica.FPS(DefaultFPS) * float64(time.Second)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind cancels every animation when the scope stops or is destroyed.
func (s *Supervisor) Bind(src *lifecycle.Source) *lifecycle.Subscription {
	return src.Subscribe(func(lifecycle.Event) { s.CancelAll() }, lifecycle.ScopeStopped, lifecycle.ScopeDestroyed)
}

// Play registers and starts a sequence. Steps without a delay start
// synchronously, so their OnStart has run by the time Play returns.
func (s *Supervisor) Play(steps ...Step) (*Animation, tea.Cmd) {
	s.nextID++
	a := &Animation{id: s.nextID, steps: steps, stepAt: s.now()}
	if len(steps) == 0 {
		a.done = true
		return a, nil
	}
	s.active = append(s.active, a)
	s.advance(a, a.stepAt)
	return a, s.schedule()
}

// Frame returns the message that advances this supervisor's animations.
func (s *Supervisor) Frame() FrameMsg {
	return FrameMsg{owner: s.id}
}

// Update advances animations on this supervisor's frame messages. It
// reports whether msg was consumed and returns the next frame command.
func (s *Supervisor) Update(msg tea.Msg) (bool, tea.Cmd) {
	m, ok := msg.(FrameMsg)
	if !ok || m.owner != s.id {
		return false, nil
	}
	now := s.now()
	for _, a := range append([]*Animation(nil), s.active...) {
		s.advance(a, now)
	}
	s.ticking = false
	return true, s.schedule()
}

// Cancel stops a running animation. The current step's OnCancel and OnEnd
// run with Canceled() true; steps that never started get no callbacks.
func (s *Supervisor) Cancel(a *Animation) {
	if a == nil || a.done {
		return
	}
	a.canceled = true
	st := a.steps[a.idx]
	if a.started {
		if st.OnCancel != nil {
			st.OnCancel(a)
		}
		if st.OnEnd != nil {
			st.OnEnd(a)
		}
	}
	s.finish(a)
}

// End fast-forwards a running animation to completion, running every
// remaining callback in order.
func (s *Supervisor) End(a *Animation) {
	if a == nil || a.done {
		return
	}
	at := a.stepAt
	for _, st := range a.steps[a.idx:] {
		at = at.Add(st.Delay + st.Duration)
	}
	s.advance(a, at)
}

// CancelAll cancels every registered animation and clears the set.
func (s *Supervisor) CancelAll() {
	for _, a := range append([]*Animation(nil), s.active...) {
		s.Cancel(a)
	}
	s.active = nil
}

// Active returns the number of registered animations.
func (s *Supervisor) Active() int {
	return len(s.active)
}

func (s *Supervisor) schedule() tea.Cmd {
	if s.ticking || len(s.active) == 0 {
		return nil
	}
	s.ticking = true
	msg := s.Frame()
	return s.tick(s.frame, func(time.Time) tea.Msg { return msg })
}

func (s *Supervisor) advance(a *Animation, now time.Time) {
	for !a.done {
		st := a.steps[a.idx]
		elapsed := now.Sub(a.stepAt)
		if elapsed < st.Delay {
			return
		}
		if !a.started {
			a.started = true
			if st.OnStart != nil {
				st.OnStart(a)
			}
			if a.done {
				return
			}
		}
		run := elapsed - st.Delay
		if st.Duration > 0 && run < st.Duration {
			update(st, float64(run)/float64(st.Duration))
			return
		}
		update(st, 1)
		if st.OnEnd != nil {
			st.OnEnd(a)
		}
		if a.done {
			return
		}
		a.idx++
		a.started = false
		a.stepAt = a.stepAt.Add(st.Delay + st.Duration)
		if a.idx == len(a.steps) {
			a.idx--
			s.finish(a)
			return
		}
	}
}

func update(st Step, f float64) {
	if st.OnUpdate == nil {
		return
	}
	ease := st.Ease
	if ease == nil {
		ease = Linear
	}
	st.OnUpdate(ease(f))
}

func (s *Supervisor) finish(a *Animation) {
	a.done = true
	for i, other := range s.active {
		if other == a {
			s.active = append(s.active[:i:i], s.active[i+1:]...)
			break
		}
	}
	listeners := a.onDone
	a.onDone = nil
	for _, fn := range listeners {
		fn(a)
	}
}
