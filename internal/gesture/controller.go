// Package gesture turns pointer drags on the button handle into a
// continuous progress value and a commit decision, and settles the handle
// on a track end with a spring simulation.
package gesture

import (
	"math"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
)

// Side is one of the two track ends.
type Side int

const (
	Off Side = iota
	On
)

func (s Side) String() string {
	if s == On {
		return "on"
	}
	return "off"
}

// TextFadeMultiplier scales drag progress into label fade intensity.
const TextFadeMultiplier = 1.5

const (
	restDistance = 0.25 // columns
	restVelocity = 0.5  // columns per frame
	sampleWindow = 100 * time.Millisecond
)

// Progress is the visual feedback for one drag update.
type Progress struct {
	Left       float64
	Fraction   float64
	TextFade   float64
	TrackColor string
}

// Release is the outcome of a finished drag.
type Release struct {
	Left     float64
	Side     Side
	Velocity float64 // columns per second, positive toward On
}

// SettleMsg advances the settle simulation by one frame.
type SettleMsg struct {
	owner uint64
	seq   uint64
}

type sample struct {
	x  float64
	at time.Time
}

var owners atomic.Uint64

// Controller tracks the handle position on a single track. All positions
// are in terminal columns, measured from the left edge of the track.
type Controller struct {
	id     uint64
	width  float64
	handle float64

	left      float64
	settledAt float64

	dragging bool
	grab     float64
	samples  []sample

	neutral string
	end     string

	spring   harmonica.Spring
	frame    time.Duration
	ticker   func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
	seq      uint64
	settling bool
	target   float64
	vel      float64
	onDone   func()
}

// New returns a controller for a track of width columns with a handle of
// handle columns, settled at the Off end.
func New(width, handle int, fps int) *Controller {
	if fps <= 0 {
		fps = 60
	}
	dt := harmonica.FPS(fps)
	c := &Controller{
		id:      owners.Add(1),
		neutral: "#000000",
		end:     "#000000",
		spring:  harmonica.NewSpring(dt, 12, 1.0),
		ticker:  tea.Tick,
		frame:   time.Duration(dt * float64(time.Second)),
	}
	c.SetTrack(width, handle)
	return c
}

// SetTrack resizes the track, keeping the handle on its settled side.
func (c *Controller) SetTrack(width, handle int) {
	on := c.SettledAt() == On
	c.width = float64(max(width, 1))
	c.handle = float64(min(max(handle, 1), max(width, 1)))
	if on {
		c.settledAt = c.MaxLeft()
	} else {
		c.settledAt = 0
	}
	c.left = c.settledAt
}

// SetTicker replaces tea.Tick as the settle frame timer.
func (c *Controller) SetTicker(t func(time.Duration, func(time.Time) tea.Msg) tea.Cmd) {
	c.ticker = t
}

// SetColors sets the neutral and end colours the track is tinted between.
func (c *Controller) SetColors(neutral, end string) {
	c.neutral = neutral
	c.end = end
}

// TrackEndColor returns the colour the track reaches at full progress.
func (c *Controller) TrackEndColor() string { return c.end }

// SetSettledAt places the handle at rest on side, dropping any settle in
// progress.
func (c *Controller) SetSettledAt(side Side) {
	c.Stop()
	if side == On {
		c.settledAt = c.MaxLeft()
	} else {
		c.settledAt = 0
	}
	c.left = c.settledAt
}

// SettledAt returns the side the handle last came to rest on.
func (c *Controller) SettledAt() Side {
	if c.settledAt > 0 && c.settledAt >= c.MaxLeft() {
		return On
	}
	return Off
}

// MaxLeft is the rightmost handle position.
func (c *Controller) MaxLeft() float64 { return c.width - c.handle }

// Left returns the current handle position.
func (c *Controller) Left() float64 { return c.left }

// Width returns the track width.
func (c *Controller) Width() float64 { return c.width }

// HandleWidth returns the handle width.
func (c *Controller) HandleWidth() float64 { return c.handle }

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.dragging }

// Settling reports whether the spring simulation is running.
func (c *Controller) Settling() bool { return c.settling }

// MoveTo places the handle without settling, for scripted slides.
func (c *Controller) MoveTo(left float64) {
	c.left = clamp(left, 0, c.MaxLeft())
}

// Press starts a drag if x falls on the handle.
func (c *Controller) Press(x float64, at time.Time) bool {
	if x < c.left || x >= c.left+c.handle {
		return false
	}
	c.Stop()
	c.dragging = true
	c.grab = x - c.left
	c.samples = append(c.samples[:0], sample{x: c.left, at: at})
	return true
}

// Drag moves the handle with the pointer and reports the feedback to draw.
func (c *Controller) Drag(x float64, at time.Time) Progress {
	if c.dragging {
		c.left = clamp(x-c.grab, 0, c.MaxLeft())
		c.samples = append(c.samples, sample{x: c.left, at: at})
		c.trim(at)
	}
	return c.Progress()
}

// Progress reports feedback for the current handle position.
func (c *Controller) Progress() Progress {
	f := Fraction(c.left, c.settledAt, c.width, c.handle)
	return Progress{
		Left:       c.left,
		Fraction:   f,
		TextFade:   clamp(f*TextFadeMultiplier, 0, 1),
		TrackColor: Blend(c.neutral, c.end, f),
	}
}

// Release ends the drag and decides the commit side.
func (c *Controller) Release(at time.Time) Release {
	c.dragging = false
	c.trim(at)
	v := 0.0
	if n := len(c.samples); n > 1 {
		first, last := c.samples[0], c.samples[n-1]
		if dt := last.at.Sub(first.at).Seconds(); dt > 0 {
			v = (last.x - first.x) / dt
		}
	}
	c.samples = c.samples[:0]
	return Release{Left: c.left, Side: CommitSide(c.left, c.handle, c.width), Velocity: v}
}

func (c *Controller) trim(now time.Time) {
	i := 0
	for i < len(c.samples)-1 && now.Sub(c.samples[i].at) > sampleWindow {
		i++
	}
	c.samples = c.samples[i:]
}

// Settle animates the handle to side with the spring, starting from the
// current velocity. onDone runs exactly once when the handle comes to rest.
// A handle already at rest on side settles immediately.
func (c *Controller) Settle(side Side, velocity float64, onDone func()) tea.Cmd {
	c.Stop()
	c.target = 0
	if side == On {
		c.target = c.MaxLeft()
	}
	c.vel = velocity
	c.onDone = onDone
	c.settling = true
	if !c.ContinueSettling() {
		c.rest()
		return nil
	}
	return c.tick()
}

// ContinueSettling reports whether the handle is still away from its
// settle target.
func (c *Controller) ContinueSettling() bool {
	return c.settling &&
		(math.Abs(c.left-c.target) > restDistance || math.Abs(c.vel*c.frame.Seconds()) > restVelocity)
}

// Update advances the settle simulation on this controller's own messages.
// It reports whether msg was consumed.
func (c *Controller) Update(msg tea.Msg) (bool, tea.Cmd) {
	m, ok := msg.(SettleMsg)
	if !ok || m.owner != c.id {
		return false, nil
	}
	if m.seq != c.seq || !c.settling {
		return true, nil
	}
	c.left, c.vel = c.spring.Update(c.left, c.vel, c.target)
	if c.left < 0 || c.left > c.MaxLeft() {
		// The track ends are hard stops.
		c.left = clamp(c.left, 0, c.MaxLeft())
		c.vel = 0
	}
	if c.ContinueSettling() {
		return true, c.tick()
	}
	c.rest()
	return true, nil
}

// Stop abandons a settle in progress without running its callback.
func (c *Controller) Stop() {
	c.seq++
	c.settling = false
	c.onDone = nil
}

func (c *Controller) rest() {
	c.settling = false
	c.left = c.target
	c.settledAt = c.target
	c.vel = 0
	done := c.onDone
	c.onDone = nil
	if done != nil {
		done()
	}
}

func (c *Controller) tick() tea.Cmd {
	msg := SettleMsg{owner: c.id, seq: c.seq}
	return c.ticker(c.frame, func(time.Time) tea.Msg { return msg })
}

// CommitSide applies the midpoint rule: a handle whose centre is at or
// before the middle of the track commits Off.
func CommitSide(left, handle, width float64) Side {
	if width <= 0 || (left+handle/2)/width <= 0.5 {
		return Off
	}
	return On
}

// Fraction is the drag progress away from the settled position.
func Fraction(left, settledAt, width, handle float64) float64 {
	span := width - handle
	if span <= 0 {
		return 0
	}
	return clamp(math.Abs(left-settledAt)/span, 0, 1)
}

// TransitionDuration is the length of a slide from start to end. A
// forward release velocity in columns per second sets the pace; otherwise
// the base duration is shortened by the distance already covered.
func TransitionDuration(start, end, velocity float64, base time.Duration) time.Duration {
	if end <= 0 || start >= end {
		return 0
	}
	if velocity > 0 {
		return time.Duration((end - start) / velocity * float64(time.Second))
	}
	return time.Duration(float64(base) * (1 - start/end))
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(hi, v))
}
