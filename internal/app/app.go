// Package app is the Connect TUI root model. It hosts a single Connect
// button and wires it to the Connect API, the websocket that reports
// authentication outcomes, and the status bar, event log and About panels.
package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/client"
	"github.com/connect-button/connect/internal/config"
	"github.com/connect-button/connect/internal/connectbutton"
	"github.com/connect-button/connect/internal/connection"
	"github.com/connect-button/connect/internal/theme"
	"github.com/connect-button/connect/internal/views/about"
	"github.com/connect-button/connect/internal/views/debug"
	"github.com/connect-button/connect/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayAbout
	OverlayDebug
)

// marginX is the button's left margin in columns.
const marginX = 2

// API is the Connect API as the host uses it.
type API interface {
	GetConnection(ctx context.Context, id string) (connection.Connection, error)
	Connect(ctx context.Context, conn connection.Connection, email string, state button.State) error
	DisableConnection(ctx context.Context, id string) (connection.Connection, error)
	Load(ctx context.Context, url string) ([]byte, error)
}

// Feed delivers authentication outcomes.
type Feed interface {
	Listen(ctx context.Context) tea.Cmd
	ReadLoop(ctx context.Context) tea.Cmd
}

type connectionMsg struct {
	conn connection.Connection
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	api    API
	feed   Feed
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	keys   KeyMap
	help   help.Model
	width  int
	height int

	connID  string
	dark    bool
	widget  *connectbutton.Widget
	rec     *recorder
	pending []tea.Cmd

	overlay   Overlay
	statusBar status.Model
	events    debug.Model
	about     about.Model
}

// New creates the root model for the button configured in cfg.
func New(cfg *config.Config, api API, feed Feed, log *slog.Logger, opts ...connectbutton.Option) Model {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	opts = append([]connectbutton.Option{
		connectbutton.WithLogger(log),
		connectbutton.WithSize(cfg.Button.TrackWidth, cfg.Button.HandleWidth),
	}, opts...)
	w := connectbutton.New(opts...)
	w.Setup(cfg.Button.Email, api, newAccounts(cfg.Button), api)
	w.SetOnDarkBackground(cfg.Button.DarkBackground)
	rec := &recorder{}
	w.AddListener(rec)

	aboutStyle := "light"
	if cfg.Button.DarkBackground {
		aboutStyle = "dark"
	}

	sb := status.New()
	sb.ConnectionID = cfg.Button.ConnectionID
	sb.State = w.State()

	return Model{
		api:       api,
		feed:      feed,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		connID:    cfg.Button.ConnectionID,
		dark:      cfg.Button.DarkBackground,
		widget:    w,
		rec:       rec,
		statusBar: sb,
		events:    debug.New(),
		about:     about.New(aboutStyle),
	}
}

// Restore puts the button back in a state saved by a previous run. States
// saved for another connection are ignored.
func (m *Model) Restore(s connectbutton.SavedState) {
	if s.Connection == nil || s.Connection.ID != m.connID {
		return
	}
	m.pending = append(m.pending, m.widget.Restore(s))
	m.about.SetConnection(*s.Connection)
	m.events.Addf(debug.KindHost, "restored %s", s.State)
	m.drain()
}

// Saved captures the button for the next run.
func (m Model) Saved() connectbutton.SavedState {
	return m.widget.Save()
}

// Widget returns the hosted button.
func (m Model) Widget() *connectbutton.Widget { return m.widget }

// Init starts the button, the websocket connection and the connection fetch.
func (m Model) Init() tea.Cmd {
	cmds := append([]tea.Cmd{m.widget.Init()}, m.pending...)
	cmds = append(cmds, m.feed.Listen(m.ctx), m.fetch())
	return tea.Batch(cmds...)
}

func (m Model) fetch() tea.Cmd {
	api, ctx, id := m.api, m.ctx, m.connID
	return func() tea.Msg {
		c, err := api.GetConnection(ctx, id)
		return connectionMsg{conn: c, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.drain()
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.Width = msg.Width
		m.widget.SetOrigin(marginX, lipgloss.Height(m.statusBar.View())+1)
		return nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.overlay != OverlayNone {
			return nil
		}
		return m.widget.Update(msg)

	case tea.FocusMsg:
		m.events.Add(debug.KindHost, "focus")
		return m.widget.Update(msg)

	case tea.BlurMsg:
		m.events.Add(debug.KindHost, "blur")
		return m.widget.Update(msg)

	case connectionMsg:
		if msg.err != nil {
			e := connection.AsErrorResponse(msg.err)
			m.statusBar.APIErr = e.Kind
			m.events.Addf(debug.KindAPI, "get %s: %s", m.connID, e.Error())
			return nil
		}
		m.statusBar.APIErr = ""
		m.about.SetConnection(msg.conn)
		m.events.Addf(debug.KindAPI, "get %s: %s", msg.conn.ID, msg.conn.Status)
		return m.widget.SetConnection(msg.conn)

	case connectbutton.AboutMsg:
		m.about.SetConnection(msg.Connection)
		m.overlay = OverlayAbout
		return nil

	case client.WSConnectedMsg:
		m.statusBar.Connected = true
		m.events.Add(debug.KindWS, "connected")
		return m.feed.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.statusBar.Connected = false
		if msg.Err != nil {
			m.events.Addf(debug.KindWS, "disconnected: %v", msg.Err)
		}
		return m.feed.Listen(m.ctx)

	case client.ConnectResultMsg:
		next := m.feed.ReadLoop(m.ctx)
		if msg.ConnectionID != m.connID {
			return next
		}
		m.events.Addf(debug.KindWS, "connect result %s %s", msg.Result.NextStep, msg.Result.ErrorKind)
		return tea.Batch(m.widget.SetConnectResult(msg.Result), next)
	}

	return m.widget.Update(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Force) {
		return m.quit()
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		}
		return nil
	}

	if m.widget.Capturing() {
		return m.widget.Update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return nil

	case key.Matches(msg, m.keys.Dark):
		m.dark = !m.dark
		m.widget.SetOnDarkBackground(m.dark)
		return nil

	case key.Matches(msg, m.keys.Reload):
		m.events.Addf(debug.KindAPI, "reload %s", m.connID)
		return m.fetch()
	}

	return m.widget.Update(msg)
}

func (m *Model) quit() tea.Cmd {
	m.widget.Destroy()
	m.cancel()
	return tea.Quit
}

// drain moves listener callbacks into the event log and status bar.
func (m *Model) drain() {
	for _, e := range m.rec.take() {
		if e.err != nil {
			m.events.Addf(debug.KindError, "%s", e.err.Error())
			continue
		}
		m.events.Addf(debug.KindState, "%s -> %s", e.prev, e.next)
	}
	m.statusBar.State = m.widget.State()
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayAbout:
		body = m.about.View(m.width)
	case OverlayDebug:
		body = m.events.View(m.width, m.height-lipgloss.Height(m.statusBar.View()))
	default:
		body = lipgloss.NewStyle().MarginLeft(marginX).Render(m.widget.View())
	}

	bindings := append(connectbutton.DefaultKeyMap().ShortHelp(), m.keys.Debug, m.keys.Dark, m.keys.Reload, m.keys.Quit)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		body,
		"",
		theme.StyleDimmed.Render("  "+m.help.ShortHelpView(bindings)),
	)
}

// accounts answers the button's questions about the signed-in user.
type accounts struct {
	emailStep bool
	known     map[string]bool
}

func newAccounts(cfg config.ButtonConfig) accounts {
	a := accounts{emailStep: cfg.EmailStep, known: make(map[string]bool, len(cfg.KnownAccounts))}
	for _, e := range cfg.KnownAccounts {
		a.known[normalizeEmail(e)] = true
	}
	return a
}

func (a accounts) ShouldPresentEmail() bool { return a.emailStep }

func (a accounts) ShouldPresentCreateAccount(email string) bool {
	return !a.known[normalizeEmail(email)]
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

type listenerEvent struct {
	next, prev button.State
	err        *connection.ErrorResponse
}

// recorder buffers listener callbacks made during a widget call.
type recorder struct {
	events []listenerEvent
}

func (r *recorder) OnStateChanged(next, prev button.State) {
	r.events = append(r.events, listenerEvent{next: next, prev: prev})
}

func (r *recorder) OnError(err connection.ErrorResponse) {
	r.events = append(r.events, listenerEvent{err: &err})
}

func (r *recorder) take() []listenerEvent {
	out := r.events
	r.events = nil
	return out
}
