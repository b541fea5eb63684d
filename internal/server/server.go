// Package server is a mock Connect API: it serves connections, starts
// authentication sessions that a browser resolves, and pushes the outcome
// to connected terminals over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/connect-button/connect/internal/connection"
)

// KindAccessDenied is reported when the user denies access on the
// authentication page.
const KindAccessDenied = "access_denied"

const shutdownTimeout = 5 * time.Second

type Server struct {
	store       *Store
	broadcaster *Broadcaster
	authToken   string
	log         *slog.Logger
	upgrader    websocket.Upgrader
}

func NewServer(store *Store, broadcaster *Broadcaster, authToken string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:       store,
		broadcaster: broadcaster,
		authToken:   authToken,
		log:         log,
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/connections/{id}", s.api(s.handleGetConnection))
	mux.HandleFunc("POST /api/connections/{id}/disable", s.api(s.handleDisable))
	mux.HandleFunc("POST /api/connections/{id}/connect", s.api(s.handleConnect))
	mux.HandleFunc("GET /auth/{token}", s.handleAuthPage)
	mux.HandleFunc("GET /auth/{token}/approve", s.handleAuthResult(true))
	mux.HandleFunc("GET /auth/{token}/deny", s.handleAuthResult(false))
	mux.HandleFunc("GET /icons/{service}", s.handleIcon)
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) api(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			writeError(w, http.StatusUnauthorized, connection.ErrorResponse{Kind: "unauthorized", Message: "missing or invalid token"})
			return
		}
		h(w, r)
	}
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, connection.ErrorResponse{Kind: "not_found", Message: "connection not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.store.SetStatus(id, connection.StatusDisabled)
	if err != nil {
		writeError(w, http.StatusNotFound, connection.ErrorResponse{Kind: "not_found", Message: err.Error()})
		return
	}
	s.log.Info("connection disabled", "connection", id)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, connection.ErrorResponse{Kind: "bad_request", Message: err.Error()})
		return
	}
	if req.Email != "" {
		if _, err := connection.ValidateEmail(req.Email); err != nil {
			writeError(w, http.StatusUnprocessableEntity, connection.ErrorResponse{Kind: "invalid_email", Message: err.Error()})
			return
		}
	}
	a, err := s.store.BeginAuth(id, req.Email, req.State)
	if err != nil {
		writeError(w, http.StatusNotFound, connection.ErrorResponse{Kind: "not_found", Message: err.Error()})
		return
	}
	s.log.Info("authentication started", "connection", id, "state", req.State)
	writeJSON(w, http.StatusOK, ConnectResponse{AuthURL: baseURL(r) + "/auth/" + a.Token})
}

var authPage = template.Must(template.New("auth").Parse(`<!doctype html>
<html><head><title>Connect {{.Connection.Name}}</title></head>
<body>
<h1>{{.Connection.Name}}</h1>
<p>{{.Connection.Description}}</p>
{{if .Session.Email}}<p>Signing in as {{.Session.Email}} ({{.Session.State}})</p>{{end}}
<p><a href="/auth/{{.Session.Token}}/approve">Approve</a> &middot; <a href="/auth/{{.Session.Token}}/deny">Deny</a></p>
</body></html>
`))

var donePage = template.Must(template.New("done").Parse(`<!doctype html>
<html><head><title>{{.}}</title></head>
<body><h1>{{.}}</h1><p>You can return to your terminal.</p></body></html>
`))

func (s *Server) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	a, ok := s.store.PeekAuth(r.PathValue("token"))
	if !ok {
		http.Error(w, "unknown or expired authentication", http.StatusNotFound)
		return
	}
	c, _ := s.store.Get(a.ConnectionID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := authPage.Execute(w, struct {
		Session    AuthSession
		Connection connection.Connection
	}{a, c}); err != nil {
		s.log.Error("render auth page", "error", err)
	}
}

func (s *Server) handleAuthResult(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.store.EndAuth(r.PathValue("token"))
		if !ok {
			http.Error(w, "unknown or expired authentication", http.StatusNotFound)
			return
		}

		result := connection.ConnectResult{NextStep: connection.StepComplete}
		title := "Connected"
		if approve {
			if _, err := s.store.SetStatus(a.ConnectionID, connection.StatusEnabled); err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
		} else {
			result = connection.ConnectResult{NextStep: connection.StepError, ErrorKind: KindAccessDenied}
			title = "Access denied"
		}
		s.log.Info("authentication resolved", "connection", a.ConnectionID, "next_step", result.NextStep)
		s.broadcaster.Broadcast(MsgConnectResult, ConnectResultPayload{
			ConnectionID:  a.ConnectionID,
			ConnectResult: result,
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := donePage.Execute(w, title); err != nil {
			s.log.Error("render done page", "error", err)
		}
	}
}

// handleIcon serves a service's monochrome icon as a one-glyph text body.
func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.store.Service(r.PathValue("service"))
	if !ok {
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}
	name := svc.ShortName
	if name == "" {
		name = svc.Name
	}
	glyph, _ := utf8.DecodeRuneInString(name)
	if glyph == utf8.RuneError {
		glyph = '◆'
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write([]byte(string(unicode.ToUpper(glyph))))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade", "error", err)
		return
	}

	s.log.Info("websocket client connected", "remote", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.log.Info("websocket client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken
}

// ExpireLoop drops stale authentication sessions until ctx is done.
func (s *Server) ExpireLoop(ctx context.Context, every, ttl time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.ExpireAuth(ttl); n > 0 {
				s.log.Debug("expired authentications", "count", n)
			}
		}
	}
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, e connection.ErrorResponse) {
	writeJSON(w, status, e)
}
