package memory

import (
	"context"
	"sync"
	"time"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
// Entries expire lazily on read.
type SessionStore struct {
	clock      func() time.Time
	mu         sync.RWMutex
	sessions   map[string]expiring[app.Session]
	remembered map[string]expiring[string]
}

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

func (e expiring[T]) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic expiry.
func NewSessionStoreWithClock(clock func() time.Time) *SessionStore {
	return &SessionStore{
		clock:      clock,
		sessions:   make(map[string]expiring[app.Session]),
		remembered: make(map[string]expiring[string]),
	}
}

func (s *SessionStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.clock().Add(ttl)
}

func (s *SessionStore) Save(_ context.Context, session app.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = expiring[app.Session]{value: session, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (app.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || !entry.live(s.clock()) {
		return app.Session{}, domain.ErrSessionNotFound
	}
	return entry.value, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) Remember(_ context.Context, deviceID, email string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remembered[deviceID] = expiring[string]{value: email, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *SessionStore) Remembered(_ context.Context, deviceID string) (string, error) {
	s.mu.RLock()
	entry, ok := s.remembered[deviceID]
	s.mu.RUnlock()
	if !ok || !entry.live(s.clock()) {
		return "", domain.ErrNotFound
	}
	return entry.value, nil
}

func (s *SessionStore) Forget(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remembered, deviceID)
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if !e.live(now) {
			delete(s.sessions, id)
			n++
		}
	}
	for id, e := range s.remembered {
		if !e.live(now) {
			delete(s.remembered, id)
			n++
		}
	}
	return n
}
