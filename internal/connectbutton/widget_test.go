package connectbutton

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/connect-button/connect/internal/anim"
	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/connection"
	"github.com/connect-button/connect/internal/flow"
	"github.com/connect-button/connect/internal/gesture"
	"github.com/connect-button/connect/internal/lifecycle"
)

const (
	testTrack  = 40
	testHandle = 8
	testMax    = testTrack - testHandle
)

type fakeAPI struct {
	connectErr error
	disabled   connection.Connection
	disableErr error
	calls      []string
	lastState  button.State
}

func (f *fakeAPI) Connect(_ context.Context, conn connection.Connection, _ string, state button.State) error {
	f.calls = append(f.calls, "connect:"+conn.ID)
	f.lastState = state
	return f.connectErr
}

func (f *fakeAPI) DisableConnection(_ context.Context, id string) (connection.Connection, error) {
	f.calls = append(f.calls, "disable:"+id)
	return f.disabled, f.disableErr
}

func (f *fakeAPI) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeCaps struct {
	email    bool
	accounts map[string]bool
}

func (c fakeCaps) ShouldPresentEmail() bool { return c.email }

func (c fakeCaps) ShouldPresentCreateAccount(email string) bool { return !c.accounts[email] }

// tickReq stands in for a real timer so tests control time.
type tickReq struct {
	d  time.Duration
	fn func(time.Time) tea.Msg
}

type timer struct {
	due time.Time
	fn  func(time.Time) tea.Msg
}

type harness struct {
	t      *testing.T
	now    time.Time
	w      *Widget
	api    *fakeAPI
	timers []timer

	hold bool
	held []tea.Msg
	out  []tea.Msg

	states []button.State
	errs   []connection.ErrorResponse
	l      *ListenerFuncs
}

func newHarness(t *testing.T, caps fakeCaps, email string) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		api: &fakeAPI{},
	}
	h.w = New(
		WithClock(func() time.Time { return h.now }),
		WithTicker(func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
			return func() tea.Msg { return tickReq{d: d, fn: fn} }
		}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSize(testTrack, testHandle),
	)
	h.w.Setup(email, h.api, caps, nil)
	h.l = &ListenerFuncs{
		StateChanged: func(next, _ button.State) { h.states = append(h.states, next) },
		Error:        func(e connection.ErrorResponse) { h.errs = append(h.errs, e) },
	}
	h.w.AddListener(h.l)
	h.exec(h.w.Init())
	return h
}

func (h *harness) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			h.exec(c)
		}
	case tickReq:
		h.timers = append(h.timers, timer{due: h.now.Add(msg.d), fn: msg.fn})
	default:
		h.out = append(h.out, msg)
		if h.hold {
			h.held = append(h.held, msg)
			return
		}
		h.send(msg)
	}
}

func (h *harness) send(msg tea.Msg) {
	h.exec(h.w.Update(msg))
}

func (h *harness) release() {
	held := h.held
	h.held = nil
	h.hold = false
	for _, msg := range held {
		h.send(msg)
	}
}

// advance moves the clock forward, firing due timers in order.
func (h *harness) advance(d time.Duration) {
	end := h.now.Add(d)
	for {
		next := -1
		for i, tm := range h.timers {
			if !tm.due.After(end) && (next < 0 || tm.due.Before(h.timers[next].due)) {
				next = i
			}
		}
		if next < 0 {
			break
		}
		tm := h.timers[next]
		h.timers = append(h.timers[:next:next], h.timers[next+1:]...)
		if tm.due.After(h.now) {
			h.now = tm.due
		}
		h.send(tm.fn(h.now))
	}
	h.now = end
}

func (h *harness) advanceUntil(cond func() bool) {
	h.t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		h.advance(10 * time.Millisecond)
	}
	h.t.Fatal("condition not reached")
}

func (h *harness) key(k tea.KeyType) {
	h.send(tea.KeyMsg{Type: k})
}

func (h *harness) mouse(x, y int, action tea.MouseAction) {
	h.send(tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft})
}

func testConnection(status connection.Status) connection.Connection {
	return connection.Connection{
		ID:     "conn-1",
		Name:   "Log my runs",
		Status: status,
		Services: []connection.Service{
			{ID: "other", Name: "Other", ShortName: "Other"},
			{ID: "foo", Name: "Foo Service", ShortName: "Foo", BrandColor: "#FF0000", Primary: true},
		},
	}
}

func noEmail() fakeCaps {
	return fakeCaps{accounts: map[string]bool{"user@example.com": true}}
}

func withEmail(known ...string) fakeCaps {
	c := fakeCaps{email: true, accounts: map[string]bool{}}
	for _, k := range known {
		c.accounts[k] = true
	}
	return c
}

func TestRenderDisabled(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusDisabled)))

	require.Equal(t, button.Disabled, h.w.State())
	require.Equal(t, "Reconnect to Foo", h.w.label)
	require.Equal(t, []button.State{button.Disabled}, h.states)
	require.Zero(t, h.w.drag.Left())
	require.Contains(t, h.w.View(), "Reconnect to Foo")
	require.Contains(t, h.w.View(), helperPowered)
}

func TestRenderEnabled(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	require.Equal(t, button.Enabled, h.w.State())
	require.Equal(t, float64(testMax), h.w.drag.Left())
	require.Equal(t, gesture.On, h.w.drag.SettledAt())
	require.Equal(t, labelConnected, h.w.label)
}

func TestRenderInitialAndUnknown(t *testing.T) {
	for _, status := range []connection.Status{connection.StatusInitial, connection.StatusUnknown, ""} {
		h := newHarness(t, noEmail(), "user@example.com")
		h.exec(h.w.SetConnection(testConnection(status)))
		require.Equal(t, button.Initial, h.w.State())
		require.Empty(t, h.states, "Initial is the starting state")
		require.Equal(t, "Connect Foo", h.w.label)
	}
}

func TestRenderWithoutServices(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(connection.Connection{ID: "c", Status: connection.StatusDisabled}))
	require.Equal(t, "Reconnect to service", h.w.label)
}

func TestSetConnectionBeforeSetupPanics(t *testing.T) {
	w := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.PanicsWithError(t, "illegal usage: SetConnection called before Setup", func() {
		w.SetConnection(testConnection(connection.StatusEnabled))
	})
}

func TestDragOffDisablesConnection(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.disabled = testConnection(connection.StatusDisabled)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	// Grab the handle one column in and drop it with its centre at 30%.
	h.mouse(testMax+1, 1, tea.MouseActionPress)
	require.True(t, h.w.drag.Dragging())
	h.now = h.now.Add(50 * time.Millisecond)
	h.mouse(9, 1, tea.MouseActionMotion)
	require.Equal(t, 8.0, h.w.drag.Left())
	h.mouse(9, 1, tea.MouseActionRelease)

	h.advance(3 * time.Second)
	require.Equal(t, []string{"disable:conn-1"}, h.api.calls)
	require.Equal(t, button.Disabled, h.w.State())
	require.Equal(t, "Reconnect to Foo", h.w.label)
	require.Zero(t, h.w.drag.Left())
	require.Empty(t, h.errs)
}

func TestDragPastMidpointStaysEnabled(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	h.mouse(testMax+1, 1, tea.MouseActionPress)
	h.now = h.now.Add(50 * time.Millisecond)
	h.mouse(21, 1, tea.MouseActionMotion) // centre at 24/40
	h.mouse(21, 1, tea.MouseActionRelease)
	h.advance(3 * time.Second)

	require.Empty(t, h.api.calls)
	require.Equal(t, button.Enabled, h.w.State())
	require.Equal(t, float64(testMax), h.w.drag.Left())
}

// startDisable flings the handle off and runs the settle until the
// disable call goes out.
func startDisable(h *harness) {
	h.key(tea.KeyLeft)
	h.advanceUntil(func() bool { return h.api.count("disable:") > 0 })
}

func TestCancelledDisableNeverCallsBack(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.disabled = testConnection(connection.StatusDisabled)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
	h.states = nil

	h.hold = true
	startDisable(h)
	require.NotEmpty(t, h.held)

	// A new gesture supersedes the disable.
	h.mouse(1, 1, tea.MouseActionPress)
	require.False(t, h.w.disabling.Running())
	require.Equal(t, labelConnected, h.w.label)

	h.release()
	h.advance(2 * time.Second)
	require.Equal(t, button.Enabled, h.w.State())
	require.Empty(t, h.states)
	require.Empty(t, h.errs)
	c, _ := h.w.Connection()
	require.Equal(t, connection.StatusEnabled, c.Status)
}

func TestDisableResultBeforeAnimationEnds(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.disabled = testConnection(connection.StatusDisabled)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	startDisable(h)
	require.True(t, h.w.disabling.Running())
	require.Equal(t, button.Enabled, h.w.State(), "result waits for the animation")

	h.advance(time.Second)
	require.Equal(t, button.Disabled, h.w.State())
	require.Equal(t, "Reconnect to Foo", h.w.label)
	require.Equal(t, 1.0, h.w.labelAlpha)
}

func TestDisableAnimationBeforeResult(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.disabled = testConnection(connection.StatusDisabled)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	h.hold = true
	startDisable(h)
	h.advance(time.Second)
	require.False(t, h.w.disabling.Running())
	require.Equal(t, button.Enabled, h.w.State())

	h.release()
	require.Equal(t, button.Disabled, h.w.State())
}

func TestDisableFailureNotifiesOnceAndResets(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.disableErr = connection.ErrorResponse{Kind: "server_error", Message: "boom"}
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	h.hold = true
	startDisable(h)
	h.release()
	require.Equal(t, []connection.ErrorResponse{{Kind: "server_error", Message: "boom"}}, h.errs)
	require.True(t, h.w.disabling.Running())

	h.advance(time.Second)
	require.Len(t, h.errs, 1)
	require.Equal(t, button.Enabled, h.w.State())
	require.Equal(t, float64(testMax), h.w.drag.Left())
	require.Equal(t, labelConnected, h.w.label)
}

func TestTapEnabledHintsAndReverts(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	h.key(tea.KeyEnter)
	require.Equal(t, labelSlideToTurnOff, h.w.label)
	h.advance(time.Second)
	require.Equal(t, labelSlideToTurnOff, h.w.label)
	h.advance(500 * time.Millisecond)
	require.Equal(t, labelConnected, h.w.label)
	require.Empty(t, h.api.calls)
}

func TestHintRestartsOnSecondTap(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	h.key(tea.KeyEnter)
	h.advance(time.Second)
	h.key(tea.KeyEnter)
	h.advance(time.Second)
	require.Equal(t, labelSlideToTurnOff, h.w.label)
	h.advance(500 * time.Millisecond)
	require.Equal(t, labelConnected, h.w.label)
}

// reachLogin taps an initial connection through to the connect call.
func reachLogin(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusInitial)))
	h.key(tea.KeyEnter)
	h.advance(time.Second)
	require.Equal(t, labelVerifying, h.w.anims.TopOverlay(anim.OverlayProgress).Text)
	h.advance(2 * time.Second)
	require.Equal(t, []string{"connect:conn-1"}, h.api.calls)
	require.Equal(t, button.Login, h.w.State())
	require.True(t, h.w.flow.MonitorActive())
	return h
}

func TestTapConnectsWithoutEmailStep(t *testing.T) {
	h := reachLogin(t)
	require.Equal(t, button.Login, h.api.lastState)
	require.Equal(t, float64(testMax), h.w.drag.Left())
	require.Equal(t, []button.State{button.Login}, h.states)
}

func TestCompleteEnablesConnection(t *testing.T) {
	h := reachLogin(t)
	h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepComplete}))
	require.False(t, h.w.flow.MonitorActive())
	require.Equal(t, labelConnectingAccount, h.w.anims.TopOverlay(anim.OverlayProgress).Text)

	h.advance(2 * time.Second)
	require.NotNil(t, h.w.anims.TopOverlay(anim.OverlayCheckMark))

	h.advance(2 * time.Second)
	require.Equal(t, button.Enabled, h.w.State())
	require.Equal(t, labelConnected, h.w.label)
	require.Empty(t, h.w.anims.Overlays())
	require.Equal(t, float64(testMax), h.w.drag.Left())
	c, ok := h.w.Connection()
	require.True(t, ok)
	require.Equal(t, connection.StatusEnabled, c.Status)
	require.Equal(t, []button.State{button.Login, button.Enabled}, h.states)
}

func TestConnectResultError(t *testing.T) {
	h := reachLogin(t)
	h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepError, ErrorKind: "access_denied"}))

	require.Equal(t, []connection.ErrorResponse{{Kind: "access_denied"}}, h.errs)
	require.Equal(t, button.Initial, h.w.State())
	require.Equal(t, "Connect Foo", h.w.label)
	require.Zero(t, h.w.drag.Left())
	require.Empty(t, h.w.anims.Overlays())
}

func TestConnectResultIndeterminate(t *testing.T) {
	h := reachLogin(t)
	h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepIndeterminate}))

	require.Equal(t, []connection.ErrorResponse{connection.UnknownState}, h.errs)
	require.Equal(t, button.Initial, h.w.State())
}

func TestConnectFailureResets(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.connectErr = errors.New("dial tcp: refused")
	h.exec(h.w.SetConnection(testConnection(connection.StatusInitial)))
	h.key(tea.KeyEnter)
	h.advance(3 * time.Second)

	require.Len(t, h.errs, 1)
	require.Equal(t, connection.KindNetworkFailure, h.errs[0].Kind)
	require.False(t, h.w.flow.MonitorActive())
	require.Equal(t, button.Initial, h.w.State())
	require.Empty(t, h.w.anims.Overlays())
}

func TestRedirectResumeResets(t *testing.T) {
	h := reachLogin(t)
	h.send(tea.BlurMsg{})
	h.send(tea.FocusMsg{})

	require.False(t, h.w.flow.MonitorActive())
	require.Equal(t, button.Initial, h.w.State())
	require.Empty(t, h.w.anims.Overlays())

	// The monitor fired once; a second resume changes nothing.
	h.states = nil
	h.send(tea.FocusMsg{})
	require.Empty(t, h.states)
}

// reachEmail taps an initial connection into the email step.
func reachEmail(t *testing.T, caps fakeCaps, email string) *harness {
	t.Helper()
	h := newHarness(t, caps, email)
	h.exec(h.w.SetConnection(testConnection(connection.StatusInitial)))
	h.key(tea.KeyEnter)
	require.False(t, h.w.Capturing())
	h.advance(time.Second)
	require.True(t, h.w.Capturing())
	require.Equal(t, helperAuthorize, h.w.helper)
	require.Equal(t, float64(testMax), h.w.drag.Left())
	return h
}

func TestInvalidEmailShowsInlineError(t *testing.T) {
	h := reachEmail(t, withEmail(), "")
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("nope")})
	require.Equal(t, "nope", h.w.email.Value())

	h.key(tea.KeyEnter)
	require.True(t, h.w.helperErr)
	require.Contains(t, h.w.View(), helperBadEmail)
	require.Empty(t, h.errs)
	require.Empty(t, h.api.calls)

	h.advance(1500 * time.Millisecond)
	require.False(t, h.w.helperErr)
	require.True(t, h.w.Capturing())
}

func TestCreateAccountCountdownConnects(t *testing.T) {
	h := reachEmail(t, withEmail(), "new@example.com")
	h.key(tea.KeyEnter)
	require.False(t, h.w.Capturing())
	require.Equal(t, labelVerifying, h.w.anims.TopOverlay(anim.OverlayProgress).Text)

	h.advance(1600 * time.Millisecond)
	require.Equal(t, button.CreateAccount, h.w.State())
	require.Equal(t, "New account for new@example.com", h.w.helper)

	h.advance(1500 * time.Millisecond)
	top := h.w.anims.TopOverlay(anim.OverlayProgress)
	require.Equal(t, "Continue to Foo Service", top.Text)
	require.NotNil(t, top.OnTap)
	require.Empty(t, h.api.calls)

	h.advance(2500 * time.Millisecond)
	require.Equal(t, []string{"connect:conn-1"}, h.api.calls)
	require.Equal(t, button.CreateAccount, h.api.lastState)
}

func TestTapDuringCountdownConnectsOnce(t *testing.T) {
	h := reachEmail(t, withEmail(), "new@example.com")
	h.key(tea.KeyEnter)
	h.advance(3500 * time.Millisecond)
	require.NotNil(t, h.w.anims.TopOverlay(anim.OverlayProgress).OnTap)

	h.key(tea.KeyEnter)
	require.Equal(t, []string{"connect:conn-1"}, h.api.calls)

	h.advance(5 * time.Second)
	require.Len(t, h.api.calls, 1)
}

func TestKnownEmailLogsIn(t *testing.T) {
	h := reachEmail(t, withEmail("known@example.com"), "known@example.com")
	h.key(tea.KeyEnter)
	h.advance(3 * time.Second)
	require.Equal(t, button.Login, h.w.State())
	require.Equal(t, []string{"connect:conn-1"}, h.api.calls)

	// An error brings back the email step rather than the toggle.
	h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepError, ErrorKind: "denied"}))
	require.Len(t, h.errs, 1)
	require.True(t, h.w.Capturing())
}

func TestBlurCancelsAndFocusRecovers(t *testing.T) {
	h := newHarness(t, withEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusInitial)))
	h.key(tea.KeyEnter)
	h.advance(300 * time.Millisecond)

	h.send(tea.BlurMsg{})
	require.Zero(t, h.w.anims.Active())
	require.False(t, h.w.Capturing())

	h.send(tea.FocusMsg{})
	require.True(t, h.w.Capturing())
	require.Equal(t, float64(testMax), h.w.drag.Left())
}

// usable checks that nothing is left playing and the button takes input
// again.
func usable(t *testing.T, h *harness) {
	t.Helper()
	require.Zero(t, h.w.anims.Active())
	require.Empty(t, h.w.anims.Overlays())
	require.True(t, h.w.gesturesAllowed() || h.w.Capturing(), "mode %d", h.w.mode)
}

func TestBlurAtEveryStepLeavesButtonUsable(t *testing.T) {
	backToEmail := func(t *testing.T, h *harness) {
		require.True(t, h.w.Capturing())
		require.Equal(t, button.Initial, h.w.State())
		require.Empty(t, h.api.calls)

		h.key(tea.KeyEnter)
		h.advance(10 * time.Second)
		require.Equal(t, []string{"connect:conn-1"}, h.api.calls)
	}
	enabled := func(t *testing.T, h *harness) {
		require.Equal(t, button.Enabled, h.w.State())
		require.Equal(t, labelConnected, h.w.label)
		require.Equal(t, float64(testMax), h.w.drag.Left())
		c, _ := h.w.Connection()
		require.Equal(t, connection.StatusEnabled, c.Status)
	}

	for _, tt := range []struct {
		name  string
		start func(t *testing.T) *harness
		check func(t *testing.T, h *harness)
	}{
		{
			name:  "verifying without email step",
			start: func(t *testing.T) *harness {
				h := newHarness(t, noEmail(), "user@example.com")
				h.exec(h.w.SetConnection(testConnection(connection.StatusInitial)))
				h.key(tea.KeyEnter)
				h.advance(time.Second)
				return h
			},
			check: func(t *testing.T, h *harness) {
				require.Equal(t, button.Initial, h.w.State())
				require.Zero(t, h.w.drag.Left())
				h.key(tea.KeyEnter)
				h.advance(4 * time.Second)
				require.Equal(t, []string{"connect:conn-1"}, h.api.calls)
			},
		},
		{
			name:  "verifying email",
			start: func(t *testing.T) *harness {
				h := reachEmail(t, withEmail(), "new@example.com")
				h.key(tea.KeyEnter)
				h.advance(500 * time.Millisecond)
				return h
			},
			check: backToEmail,
		},
		{
			name:  "creating account",
			start: func(t *testing.T) *harness {
				h := reachEmail(t, withEmail(), "new@example.com")
				h.key(tea.KeyEnter)
				h.advance(2 * time.Second)
				require.Equal(t, labelCreatingAccount, h.w.anims.TopOverlay(anim.OverlayProgress).Text)
				return h
			},
			check: backToEmail,
		},
		{
			name:  "countdown",
			start: func(t *testing.T) *harness {
				h := reachEmail(t, withEmail(), "new@example.com")
				h.key(tea.KeyEnter)
				h.advance(3500 * time.Millisecond)
				require.NotNil(t, h.w.anims.TopOverlay(anim.OverlayProgress).OnTap)
				return h
			},
			check: backToEmail,
		},
		{
			name:  "logging in",
			start: func(t *testing.T) *harness {
				h := reachEmail(t, withEmail("known@example.com"), "known@example.com")
				h.key(tea.KeyEnter)
				h.advance(1800 * time.Millisecond)
				return h
			},
			check: backToEmail,
		},
		{
			name:  "connecting account",
			start: func(t *testing.T) *harness {
				h := reachLogin(t)
				h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepComplete}))
				h.advance(500 * time.Millisecond)
				return h
			},
			check: enabled,
		},
		{
			name:  "check mark delay",
			start: func(t *testing.T) *harness {
				h := reachLogin(t)
				h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepComplete}))
				h.advance(1550 * time.Millisecond)
				require.Nil(t, h.w.anims.TopOverlay(anim.OverlayCheckMark))
				return h
			},
			check: enabled,
		},
		{
			name:  "disabling",
			start: func(t *testing.T) *harness {
				h := newHarness(t, noEmail(), "user@example.com")
				h.api.disabled = testConnection(connection.StatusDisabled)
				h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
				startDisable(h)
				require.True(t, h.w.disabling.Running())
				return h
			},
			check: func(t *testing.T, h *harness) {
				require.Equal(t, button.Disabled, h.w.State())
				require.Equal(t, "Reconnect to Foo", h.w.label)
				require.Zero(t, h.w.drag.Left())
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.start(t)
			require.NotZero(t, h.w.anims.Active())

			h.send(tea.BlurMsg{})
			require.Zero(t, h.w.anims.Active())

			h.send(tea.FocusMsg{})
			usable(t, h)
			h.advance(10 * time.Second)
			usable(t, h)
			tt.check(t, h)
		})
	}
}

func TestHostConnectionReplacesRunningSequence(t *testing.T) {
	h := reachLogin(t)
	h.exec(h.w.SetConnectResult(connection.ConnectResult{NextStep: connection.StepComplete}))
	h.advance(500 * time.Millisecond)

	h.exec(h.w.SetConnection(testConnection(connection.StatusDisabled)))
	usable(t, h)
	h.advance(5 * time.Second)
	require.Equal(t, button.Disabled, h.w.State())
	require.Equal(t, "Reconnect to Foo", h.w.label)
	require.Empty(t, h.w.anims.Overlays())
}

func TestHostConnectionDropsPendingDisable(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.api.disabled = testConnection(connection.StatusDisabled)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))

	h.hold = true
	startDisable(h)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
	require.False(t, h.w.flow.Pending(flow.TagDisconnect))

	h.release()
	h.advance(time.Second)
	require.Equal(t, button.Enabled, h.w.State())
	require.Equal(t, labelConnected, h.w.label)
}

type fakeImages struct{ urls []string }

func (f *fakeImages) Load(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return []byte("F"), nil
}

func TestPressCancelsIconLoad(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	images := &fakeImages{}
	h.w.Setup("user@example.com", h.api, noEmail(), images)
	conn := testConnection(connection.StatusEnabled)
	conn.Services[1].MonochromeIconURL = "/icons/foo"

	h.hold = true
	h.exec(h.w.SetConnection(conn))
	require.True(t, h.w.flow.Pending(flow.TagImageLoad))

	h.mouse(testMax+1, 1, tea.MouseActionPress)
	require.False(t, h.w.flow.Pending(flow.TagImageLoad))

	h.release()
	require.Equal(t, []string{"/icons/foo"}, images.urls)
	require.Nil(t, h.w.icon)
}

func TestDragRevertsHint(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
	h.key(tea.KeyEnter)
	require.Equal(t, labelSlideToTurnOff, h.w.label)

	h.mouse(testMax+1, 1, tea.MouseActionPress)
	h.now = h.now.Add(50 * time.Millisecond)
	h.mouse(testMax-4, 1, tea.MouseActionMotion)
	require.Equal(t, labelConnected, h.w.label)
	require.False(t, h.w.sched.Pending())
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	h := reachLogin(t)
	saved := h.w.Save()

	data, err := json.Marshal(saved)
	require.NoError(t, err)
	var decoded SavedState
	require.NoError(t, json.Unmarshal(data, &decoded))

	h2 := newHarness(t, noEmail(), "user@example.com")
	h2.exec(h2.w.Restore(decoded))
	require.Equal(t, saved, h2.w.Save())
	require.Equal(t, button.Login, h2.w.State())
}

func TestRemovedListenerIsNotNotified(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.w.RemoveListener(h.l)
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
	require.Empty(t, h.states)
}

func TestAboutKey(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	require.Len(t, h.out, 1)
	about, ok := h.out[0].(AboutMsg)
	require.True(t, ok)
	require.Equal(t, "conn-1", about.Connection.ID)
}

func TestDestroyDisposesEverything(t *testing.T) {
	h := reachLogin(t)
	h.w.Destroy()
	require.True(t, h.w.Lifecycle().Destroyed())
	require.False(t, h.w.flow.MonitorActive())
	require.Zero(t, h.w.anims.Active())

	h.w.Lifecycle().Emit(lifecycle.HostResumed)
	require.Equal(t, button.Login, h.w.State())
}

func TestDarkBackgroundDrawsBorder(t *testing.T) {
	h := newHarness(t, noEmail(), "user@example.com")
	h.exec(h.w.SetConnection(testConnection(connection.StatusEnabled)))
	light := h.w.View()
	h.w.SetOnDarkBackground(true)
	dark := h.w.View()
	require.Equal(t, strings.Count(light, "\n")+2, strings.Count(dark, "\n"))
	require.Contains(t, dark, "╭")
}
