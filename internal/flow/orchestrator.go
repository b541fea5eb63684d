// Package flow drives the asynchronous operations behind the button:
// connect, disconnect, icon loading and the redirect monitor that watches
// for the user returning from the external authentication page.
//
// Every operation runs under a tag. Starting an operation cancels the one
// already running under the same tag, and a cancelled operation's result
// is dropped before it reaches any callback.
package flow

import (
	"context"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/connection"
	"github.com/connect-button/connect/internal/lifecycle"
)

// APIClient is the Connect API as the button needs it.
type APIClient interface {
	// Connect opens the external authentication step for conn.
	Connect(ctx context.Context, conn connection.Connection, email string, state button.State) error
	DisableConnection(ctx context.Context, id string) (connection.Connection, error)
}

// ImageLoader fetches service icons.
type ImageLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// Capabilities are host predicates consulted during the connect flow.
type Capabilities interface {
	ShouldPresentEmail() bool
	ShouldPresentCreateAccount(email string) bool
}

// Tag identifies an operation kind.
type Tag int

const (
	TagConnect Tag = iota
	TagDisconnect
	TagImageLoad
	TagRedirectMonitor
)

func (t Tag) String() string {
	switch t {
	case TagConnect:
		return "connect"
	case TagDisconnect:
		return "disconnect"
	case TagImageLoad:
		return "imageLoad"
	case TagRedirectMonitor:
		return "redirectMonitor"
	default:
		return "unknown"
	}
}

// Token is the cancellation handle of one operation.
type Token struct {
	tag      Tag
	seq      uint64
	cancel   context.CancelFunc
	finished bool
}

// Cancel stops the operation. Its result, if it arrives, is dropped.
func (t *Token) Cancel() {
	if t.finished {
		return
	}
	t.finished = true
	if t.cancel != nil {
		t.cancel()
	}
}

// Done reports whether the operation completed or was cancelled.
func (t *Token) Done() bool { return t.finished }

// complete is the completion guard: it succeeds once, and never after Cancel.
func (t *Token) complete() bool {
	if t.finished {
		return false
	}
	t.finished = true
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

// DisableCallback receives the outcome of a disable call.
type DisableCallback struct {
	OnSuccess func(connection.Connection)
	OnFailure func(connection.ErrorResponse)
}

type resultMsg struct {
	owner uint64
	tag   Tag
	seq   uint64
	conn  connection.Connection
	data  []byte
	err   error
}

var owners atomic.Uint64

// Orchestrator owns at most one outstanding operation per tag. Like the
// rest of the button it runs on the UI loop; network calls execute inside
// Bubble Tea commands and report back through Update.
type Orchestrator struct {
	id     uint64
	api    APIClient
	caps   Capabilities
	images ImageLoader
	log    *slog.Logger

	email   string
	seq     uint64
	tokens  map[Tag]*Token
	monitor *lifecycle.Subscription

	onDisable   DisableCallback
	onConnect   func(connection.ErrorResponse)
	onImageLoad func([]byte)
}

// New returns an orchestrator. A nil logger uses slog.Default.
func New(api APIClient, caps Capabilities, images ImageLoader, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		id:     owners.Add(1),
		api:    api,
		caps:   caps,
		images: images,
		log:    log.With("component", "flow"),
		tokens: make(map[Tag]*Token),
	}
}

// Capabilities returns the host predicates.
func (o *Orchestrator) Capabilities() Capabilities { return o.caps }

// PrepareAuthentication validates and caches the email for the next
// connect call.
func (o *Orchestrator) PrepareAuthentication(email string) error {
	valid, err := connection.ValidateEmail(email)
	if err != nil {
		return err
	}
	o.email = valid
	return nil
}

// Email returns the email cached by PrepareAuthentication.
func (o *Orchestrator) Email() string { return o.email }

// ShouldPresentEmail reports whether the flow needs an email step.
func (o *Orchestrator) ShouldPresentEmail() bool {
	return o.caps != nil && o.caps.ShouldPresentEmail()
}

// ShouldPresentCreateAccount reports whether email is new to the service.
func (o *Orchestrator) ShouldPresentCreateAccount(email string) bool {
	return o.caps != nil && o.caps.ShouldPresentCreateAccount(email)
}

// Connect moves machine to CreateAccount or Login and opens the external
// authentication step. onFailure runs if the step could not be opened.
func (o *Orchestrator) Connect(conn connection.Connection, machine *button.Machine, onFailure func(connection.ErrorResponse)) tea.Cmd {
	next := button.Login
	if o.ShouldPresentCreateAccount(o.email) {
		next = button.CreateAccount
	}
	machine.Set(next)

	tok, ctx := o.start(TagConnect)
	o.onConnect = onFailure
	api, email, state, id, seq := o.api, o.email, machine.Current(), o.id, tok.seq
	o.log.Info("connect", "connection", conn.ID, "state", state)
	return func() tea.Msg {
		err := api.Connect(ctx, conn, email, state)
		return resultMsg{owner: id, tag: TagConnect, seq: seq, err: err}
	}
}

// DisableConnection turns the connection off. A disable already in flight
// is cancelled first.
func (o *Orchestrator) DisableConnection(connID string, cb DisableCallback) tea.Cmd {
	tok, ctx := o.start(TagDisconnect)
	o.onDisable = cb
	api, id, seq := o.api, o.id, tok.seq
	o.log.Info("disable", "connection", connID)
	return func() tea.Msg {
		conn, err := api.DisableConnection(ctx, connID)
		return resultMsg{owner: id, tag: TagDisconnect, seq: seq, conn: conn, err: err}
	}
}

// LoadImage fetches url and hands the bytes to fn. Failures are logged and
// leave the placeholder in place.
func (o *Orchestrator) LoadImage(url string, fn func([]byte)) tea.Cmd {
	if o.images == nil || url == "" {
		return nil
	}
	tok, ctx := o.start(TagImageLoad)
	o.onImageLoad = fn
	images, id, seq := o.images, o.id, tok.seq
	return func() tea.Msg {
		data, err := images.Load(ctx, url)
		return resultMsg{owner: id, tag: TagImageLoad, seq: seq, data: data, err: err}
	}
}

// CancelConnect cancels the outstanding connect call.
func (o *Orchestrator) CancelConnect() { o.cancel(TagConnect) }

// CancelDisconnect cancels the outstanding disable call.
func (o *Orchestrator) CancelDisconnect() { o.cancel(TagDisconnect) }

// CancelImageLoad cancels the outstanding icon load.
func (o *Orchestrator) CancelImageLoad() { o.cancel(TagImageLoad) }

// Pending reports whether an operation is outstanding under tag.
func (o *Orchestrator) Pending(tag Tag) bool {
	if tag == TagRedirectMonitor {
		return o.MonitorActive()
	}
	_, ok := o.tokens[tag]
	return ok
}

// CancelAll cancels every operation and disposes the redirect monitor.
func (o *Orchestrator) CancelAll() {
	for _, tag := range []Tag{TagConnect, TagDisconnect, TagImageLoad} {
		o.cancel(tag)
	}
	o.StopRedirectMonitor()
}

// MonitorRedirect registers the one-shot observer for the host becoming
// active again after the external authentication step. The subscription
// disposes itself before onResume runs. Registering a second monitor while
// one is active is a programmer error.
func (o *Orchestrator) MonitorRedirect(src *lifecycle.Source, onResume func()) *lifecycle.Subscription {
	if o.MonitorActive() {
		panic(connection.IllegalUsage("redirect monitor already registered"))
	}
	var sub *lifecycle.Subscription
	sub = src.Subscribe(func(lifecycle.Event) {
		sub.Dispose()
		if o.monitor == sub {
			o.monitor = nil
		}
		o.log.Debug("host resumed after redirect")
		onResume()
	}, lifecycle.HostResumed)
	o.monitor = sub
	return sub
}

// MonitorActive reports whether a redirect monitor is registered.
func (o *Orchestrator) MonitorActive() bool {
	return o.monitor != nil && o.monitor.Active()
}

// StopRedirectMonitor disposes the redirect monitor, if any.
func (o *Orchestrator) StopRedirectMonitor() {
	if o.monitor != nil {
		o.monitor.Dispose()
		o.monitor = nil
	}
}

// Update delivers operation results to their callbacks. Results of
// cancelled or superseded operations are consumed and dropped.
func (o *Orchestrator) Update(msg tea.Msg) bool {
	m, ok := msg.(resultMsg)
	if !ok || m.owner != o.id {
		return false
	}
	tok := o.tokens[m.tag]
	if tok == nil || tok.seq != m.seq || !tok.complete() {
		o.log.Debug("dropped stale result", "tag", m.tag)
		return true
	}
	delete(o.tokens, m.tag)

	switch m.tag {
	case TagConnect:
		cb := o.onConnect
		o.onConnect = nil
		if m.err != nil {
			o.log.Warn("connect failed", "error", m.err)
			if cb != nil {
				cb(connection.AsErrorResponse(m.err))
			}
		}
	case TagDisconnect:
		cb := o.onDisable
		o.onDisable = DisableCallback{}
		if m.err != nil {
			o.log.Warn("disable failed", "error", m.err)
			if cb.OnFailure != nil {
				cb.OnFailure(connection.AsErrorResponse(m.err))
			}
			return true
		}
		if cb.OnSuccess != nil {
			cb.OnSuccess(m.conn)
		}
	case TagImageLoad:
		cb := o.onImageLoad
		o.onImageLoad = nil
		if m.err != nil {
			o.log.Debug("icon load failed", "error", m.err)
			return true
		}
		if cb != nil {
			cb(m.data)
		}
	}
	return true
}

func (o *Orchestrator) start(tag Tag) (*Token, context.Context) {
	o.cancel(tag)
	o.seq++
	ctx, cancel := context.WithCancel(context.Background())
	tok := &Token{tag: tag, seq: o.seq, cancel: cancel}
	o.tokens[tag] = tok
	return tok, ctx
}

func (o *Orchestrator) cancel(tag Tag) {
	tok, ok := o.tokens[tag]
	if !ok {
		return
	}
	delete(o.tokens, tag)
	tok.Cancel()
	o.log.Debug("cancelled", "tag", tag)
	switch tag {
	case TagConnect:
		o.onConnect = nil
	case TagDisconnect:
		o.onDisable = DisableCallback{}
	case TagImageLoad:
		o.onImageLoad = nil
	}
}
