// Package connectbutton is the Connect button widget: a draggable toggle
// that walks the user through enabling a connection, authenticating with
// the service and turning the connection back off.
//
// The widget is a Bubble Tea component. The host forwards messages to
// Update and draws View; every operation that starts asynchronous work
// returns the command to run.
package connectbutton

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/connect-button/connect/internal/anim"
	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/connection"
	"github.com/connect-button/connect/internal/flow"
	"github.com/connect-button/connect/internal/gesture"
	"github.com/connect-button/connect/internal/lifecycle"
	"github.com/connect-button/connect/internal/revert"
	"github.com/connect-button/connect/internal/theme"
)

// Labels shown on the track and the helper line.
const (
	labelConnect           = "Connect %s"
	labelReconnect         = "Reconnect to %s"
	labelConnected         = "Connected"
	labelSlideToTurnOff    = "Slide to turn off"
	labelVerifying         = "Verifying"
	labelCreatingAccount   = "Creating account"
	labelContinueTo        = "Continue to %s"
	labelConnectingAccount = "Connecting account"

	helperPowered    = "Powered by IFTTT"
	helperAuthorize  = "Authorize with IFTTT"
	helperNewAccount = "New account for %s"
	helperBadEmail   = "Enter a valid email"
)

const (
	labelFadeOut    = 0.5
	flingSpeed      = 60.0 // columns per second
	checkMarkDelay  = 100 * time.Millisecond
	defaultTrack    = 40
	defaultHandle   = 7
	bodyHeight      = 3
	fallbackService = "service"
)

// Timings are the durations of the button's sequences.
type Timings struct {
	Short       time.Duration
	Medium      time.Duration
	Long        time.Duration
	AutoAdvance time.Duration
}

// DefaultTimings returns the standard sequence durations.
func DefaultTimings() Timings {
	return Timings{
		Short:       400 * time.Millisecond,
		Medium:      700 * time.Millisecond,
		Long:        1500 * time.Millisecond,
		AutoAdvance: 2400 * time.Millisecond,
	}
}

// Listener observes the button.
type Listener interface {
	OnStateChanged(next, prev button.State)
	OnError(err connection.ErrorResponse)
}

// ListenerFuncs adapts plain functions to Listener.
type ListenerFuncs struct {
	StateChanged func(next, prev button.State)
	Error        func(err connection.ErrorResponse)
}

func (l *ListenerFuncs) OnStateChanged(next, prev button.State) {
	if l.StateChanged != nil {
		l.StateChanged(next, prev)
	}
}

func (l *ListenerFuncs) OnError(err connection.ErrorResponse) {
	if l.Error != nil {
		l.Error(err)
	}
}

// AboutMsg asks the host to show information about the connection.
type AboutMsg struct {
	Connection connection.Connection
}

type mode int

const (
	modeToggle mode = iota
	modeEmail
	modeBusy
)

type pressState struct {
	x        float64
	body     bool
	helper   bool
	dragging bool
	moved    bool
}

// Option configures a Widget.
type Option func(*Widget)

// WithTimings overrides the sequence durations.
func WithTimings(t Timings) Option {
	return func(w *Widget) { w.timings = t }
}

// WithClock overrides the time source used for animations and drags.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

// WithTicker overrides the timer used by animations, settles and
// revertible actions.
func WithTicker(t anim.Ticker) Option {
	return func(w *Widget) { w.ticker = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.log = l
		}
	}
}

// WithLifecycle shares a host lifecycle source instead of deriving one
// from focus messages.
func WithLifecycle(src *lifecycle.Source) Option {
	return func(w *Widget) { w.src = src }
}

// WithSize sets the track and handle widths in columns.
func WithSize(track, handle int) Option {
	return func(w *Widget) {
		w.trackWidth = track
		w.handleWidth = handle
	}
}

// Widget is the Connect button. It is driven from the Bubble Tea loop and
// is not safe for concurrent use.
type Widget struct {
	log     *slog.Logger
	timings Timings
	now     func() time.Time
	ticker  anim.Ticker

	src     *lifecycle.Source
	ownsSrc bool
	subs    []*lifecycle.Subscription

	machine *button.Machine
	sched   *revert.Scheduler
	anims   *anim.Supervisor
	drag    *gesture.Controller
	flow    *flow.Orchestrator

	conn       *connection.Connection
	service    connection.Service
	listeners  []Listener
	dark       bool
	setupEmail string

	trackWidth  int
	handleWidth int

	mode       mode
	label      string
	labelAlpha float64
	helper     string
	helperErr  bool
	trackColor string
	trackAlpha float64
	email      textinput.Model
	emailAlpha float64
	emailReady bool
	icon       []byte

	bar  progress.Model
	keys KeyMap

	originX, originY int
	press            *pressState
	disabling        *anim.Animation
	completing       bool
	deferred         func()

	cmds []tea.Cmd
}

// New returns a widget. Setup must be called before SetConnection.
func New(opts ...Option) *Widget {
	w := &Widget{
		log:         slog.Default(),
		timings:     DefaultTimings(),
		now:         time.Now,
		ticker:      tea.Tick,
		trackWidth:  defaultTrack,
		handleWidth: defaultHandle,
		labelAlpha:  1,
		trackAlpha:  1,
		trackColor:  theme.HexTrack,
		helper:      helperPowered,
		keys:        DefaultKeyMap(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("component", "connectbutton")
	if w.src == nil {
		w.src = lifecycle.NewSource()
		w.ownsSrc = true
	}

	w.machine = button.NewMachine()
	w.machine.Observe(w.dispatchState)
	w.sched = revert.New(revert.WithTicker(w.ticker))
	w.anims = anim.NewSupervisor(anim.WithClock(w.now), anim.WithTicker(w.ticker))
	w.drag = gesture.New(w.trackWidth, w.handleWidth, anim.DefaultFPS)
	w.drag.SetTicker(w.ticker)
	w.drag.SetColors(theme.HexTrack, theme.HexTrack)

	w.subs = append(w.subs,
		w.anims.Bind(w.src),
		w.src.Subscribe(func(lifecycle.Event) { w.onScopeStarted() }, lifecycle.ScopeStarted),
		w.src.Subscribe(func(lifecycle.Event) { w.teardown() }, lifecycle.ScopeDestroyed),
	)

	w.email = textinput.New()
	w.email.Placeholder = "you@example.com"
	w.email.Prompt = ""
	w.email.CharLimit = 254
	w.email.Width = w.trackWidth - w.handleWidth - 2
	w.email.Cursor.SetMode(cursor.CursorStatic)

	w.bar = progress.New(progress.WithoutPercentage(), progress.WithWidth(w.trackWidth))
	return w
}

// Setup supplies the collaborators and the email used to prefill the
// email step.
func (w *Widget) Setup(email string, api flow.APIClient, caps flow.Capabilities, images flow.ImageLoader) {
	if w.flow != nil {
		w.flow.CancelAll()
	}
	w.flow = flow.New(api, caps, images, w.log)
	w.setupEmail = email
	w.email.SetValue(email)
}

// Init starts the widget's lifecycle scope.
func (w *Widget) Init() tea.Cmd {
	if w.ownsSrc && !w.src.Started() {
		w.src.Emit(lifecycle.ScopeStarted)
	}
	return w.flush()
}

// Lifecycle returns the source the widget's animations and redirect
// monitor are scoped to.
func (w *Widget) Lifecycle() *lifecycle.Source { return w.src }

// State returns the current button state.
func (w *Widget) State() button.State { return w.machine.Current() }

// Connection returns the rendered connection.
func (w *Widget) Connection() (connection.Connection, bool) {
	if w.conn == nil {
		return connection.Connection{}, false
	}
	return w.conn.Clone(), true
}

// AddListener registers l. Listeners are notified in registration order.
func (w *Widget) AddListener(l Listener) {
	w.listeners = append(w.listeners, l)
}

// RemoveListener unregisters l.
func (w *Widget) RemoveListener(l Listener) {
	for i, other := range w.listeners {
		if other == l {
			w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
			return
		}
	}
}

// SetOnDarkBackground adapts the helper text and draws a border around the
// button for dark hosts.
func (w *Widget) SetOnDarkBackground(dark bool) {
	if w.dark == dark {
		return
	}
	w.dark = dark
}

// SetOrigin tells the widget where its top-left cell is on screen, for
// mouse hit testing.
func (w *Widget) SetOrigin(x, y int) {
	w.originX, w.originY = x, y
}

// Capturing reports whether keystrokes go to the email field.
func (w *Widget) Capturing() bool {
	return w.mode == modeEmail && w.emailReady
}

// SetConnection renders conn. It panics if Setup has not been called.
func (w *Widget) SetConnection(conn connection.Connection) tea.Cmd {
	w.mustSetup("SetConnection")
	w.abandon()
	w.render(conn)
	return w.flush()
}

// SetConnectResult applies the outcome of the external authentication
// step.
func (w *Widget) SetConnectResult(r connection.ConnectResult) tea.Cmd {
	w.mustSetup("SetConnectResult")
	w.flow.StopRedirectMonitor()
	w.anims.DismissOverlays(anim.OverlayProgress)
	w.log.Info("connect result", "next_step", r.NextStep, "error_type", r.ErrorKind)

	if r.NextStep == connection.StepComplete {
		w.complete()
		return w.flush()
	}
	if r.NextStep != connection.StepError && w.machine.Current() == button.Login {
		w.labelAlpha = 1
	}
	w.dispatchError(*r.Err())
	return w.flush()
}

// Destroy ends the widget's scope: pending reversals are dropped without
// reverting, and every operation and animation is cancelled.
func (w *Widget) Destroy() {
	if w.ownsSrc {
		w.src.Emit(lifecycle.ScopeDestroyed)
		return
	}
	w.teardown()
}

// Update handles input, lifecycle, timer and operation messages.
func (w *Widget) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.FocusMsg, tea.BlurMsg:
		if w.ownsSrc {
			for _, e := range lifecycle.FromTea(msg) {
				w.src.Emit(e)
			}
		}
	case tea.KeyMsg:
		w.handleKey(msg)
	case tea.MouseMsg:
		w.handleMouse(msg)
	default:
		if ok, cmd := w.anims.Update(msg); ok {
			w.queue(cmd)
			break
		}
		if ok, cmd := w.drag.Update(msg); ok {
			w.queue(cmd)
			if w.drag.Settling() {
				w.applyDrag(w.drag.Progress())
			}
			break
		}
		if w.sched.Update(msg) {
			break
		}
		if w.flow != nil && w.flow.Update(msg) {
			break
		}
		if w.mode == modeEmail {
			var cmd tea.Cmd
			w.email, cmd = w.email.Update(msg)
			w.queue(cmd)
		}
	}
	return w.flush()
}

func (w *Widget) mustSetup(op string) {
	if w.flow == nil {
		panic(connection.IllegalUsage("%s called before Setup", op))
	}
}

func (w *Widget) dispatchState(next, prev button.State) {
	w.log.Debug("state", "next", next, "prev", prev)
	for _, l := range append([]Listener(nil), w.listeners...) {
		l.OnStateChanged(next, prev)
	}
}

func (w *Widget) notifyError(e connection.ErrorResponse) {
	w.log.Warn("button error", "kind", e.Kind, "message", e.Message)
	for _, l := range append([]Listener(nil), w.listeners...) {
		l.OnError(e)
	}
}

func (w *Widget) teardown() {
	w.deferred = nil
	w.sched.Clear()
	w.anims.CancelAll()
	if w.flow != nil {
		w.flow.CancelAll()
	}
	if !w.ownsSrc {
		for _, s := range w.subs {
			s.Dispose()
		}
	}
}

// onScopeStarted recovers a sequence that was cancelled when the scope
// stopped halfway through.
func (w *Widget) onScopeStarted() {
	if w.conn == nil || w.flow == nil || w.anims.Active() > 0 || w.drag.Settling() {
		return
	}
	if fn := w.deferred; fn != nil {
		w.deferred = nil
		fn()
		return
	}
	switch {
	case w.mode == modeEmail && !w.emailReady:
		w.emailTransition(0, true)
	case w.mode == modeBusy && !w.flow.MonitorActive():
		w.resumeInterrupted()
	}
}

// resumeInterrupted lands a cancelled sequence where it would have ended,
// or on the safe rendering when it had not yet reached a result.
func (w *Widget) resumeInterrupted() {
	w.anims.DismissOverlays(anim.OverlayProgress, anim.OverlayCheckMark)
	if w.completing {
		w.finishComplete()
		return
	}
	w.render(*w.conn)
	if w.flow.ShouldPresentEmail() {
		w.emailTransition(0, true)
	}
}

// abandon drops whatever the button is playing so a snapshot from the host
// is not drawn over by a stale sequence.
func (w *Widget) abandon() {
	w.disabling = nil
	w.deferred = nil
	w.anims.CancelAll()
	w.anims.DismissOverlays(anim.OverlayProgress, anim.OverlayCheckMark)
	w.flow.CancelDisconnect()
}

func (w *Widget) queue(cmd tea.Cmd) {
	if cmd != nil {
		w.cmds = append(w.cmds, cmd)
	}
}

func (w *Widget) flush() tea.Cmd {
	cmds := w.cmds
	w.cmds = nil
	return tea.Batch(cmds...)
}

func (w *Widget) play(steps ...anim.Step) *anim.Animation {
	a, cmd := w.anims.Play(steps...)
	w.queue(cmd)
	return a
}

func primaryService(c connection.Connection) connection.Service {
	s, ok := c.PrimaryService()
	if !ok {
		s = connection.Service{Name: fallbackService}
	}
	if s.Name == "" {
		s.Name = fallbackService
	}
	if s.ShortName == "" {
		s.ShortName = s.Name
	}
	if s.BrandColor == "" {
		s.BrandColor = theme.HexDefaultBrand
	}
	return s
}

func (w *Widget) statusLabel() string {
	if w.conn == nil {
		return ""
	}
	switch w.conn.Status {
	case connection.StatusEnabled:
		return labelConnected
	case connection.StatusDisabled:
		return fmt.Sprintf(labelReconnect, w.service.ShortName)
	default:
		return fmt.Sprintf(labelConnect, w.service.ShortName)
	}
}
