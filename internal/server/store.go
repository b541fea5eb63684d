package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/connect-button/connect/internal/connection"
)

// AuthSession is one pending visit to the authentication page.
type AuthSession struct {
	Token        string
	ConnectionID string
	Email        string
	State        string
	Created      time.Time
}

// Store holds the connections and pending authentication sessions.
type Store struct {
	mu    sync.RWMutex
	conns map[string]connection.Connection
	auth  map[string]AuthSession
	now   func() time.Time
}

func NewStore(seed []connection.Connection) *Store {
	s := &Store{
		conns: make(map[string]connection.Connection, len(seed)),
		auth:  make(map[string]AuthSession),
		now:   time.Now,
	}
	for _, c := range seed {
		s.conns[c.ID] = c.Clone()
	}
	return s
}

func (s *Store) Get(id string) (connection.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return connection.Connection{}, false
	}
	return c.Clone(), true
}

// SetStatus updates a connection and returns the new snapshot.
func (s *Store) SetStatus(id string, status connection.Status) (connection.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return connection.Connection{}, fmt.Errorf("connection %q not found", id)
	}
	c.Status = status
	s.conns[id] = c
	return c.Clone(), nil
}

// Service finds a service by id across all connections.
func (s *Store) Service(id string) (connection.Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		for _, svc := range c.Services {
			if svc.ID == id {
				return svc, true
			}
		}
	}
	return connection.Service{}, false
}

// BeginAuth records a pending authentication and returns its token.
func (s *Store) BeginAuth(connID, email, state string) (AuthSession, error) {
	if _, ok := s.Get(connID); !ok {
		return AuthSession{}, fmt.Errorf("connection %q not found", connID)
	}
	a := AuthSession{
		Token:        uuid.NewString(),
		ConnectionID: connID,
		Email:        email,
		State:        state,
		Created:      s.now(),
	}
	s.mu.Lock()
	s.auth[a.Token] = a
	s.mu.Unlock()
	return a, nil
}

// PeekAuth returns a pending authentication without consuming it.
func (s *Store) PeekAuth(token string) (AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auth[token]
	return a, ok
}

// EndAuth consumes a pending authentication. Each token resolves once.
func (s *Store) EndAuth(token string) (AuthSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auth[token]
	if ok {
		delete(s.auth, token)
	}
	return a, ok
}

// ExpireAuth drops authentications older than ttl and reports how many
// were removed.
func (s *Store) ExpireAuth(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for token, a := range s.auth {
		if a.Created.Before(cutoff) {
			delete(s.auth, token)
			n++
		}
	}
	return n
}
