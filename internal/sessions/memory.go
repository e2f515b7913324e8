package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
	logger   *slog.Logger
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
		logger:   logger.With(slog.String("component", "memory_session_store")),
	}
}

// Save stores a copy of the session
func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	if session.Info.ID == "" {
		return fmt.Errorf("session has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.Info.ID]; exists {
		return fmt.Errorf("session %s already exists", session.Info.ID)
	}
	s.sessions[session.Info.ID] = copySession(session)
	return nil
}

// Get retrieves a session by ID
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists || s.expired(session) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Return a copy to prevent external modification
	return copySession(session), nil
}

// Delete removes a session from the store
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists || s.expired(session) {
		delete(s.sessions, id)
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Cleanup removes expired sessions and returns how many were removed
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted
}

// Run removes expired sessions every interval until ctx is done
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				s.logger.Debug("Expired upload sessions removed", slog.Int("count", n))
			}
		}
	}
}

// Count returns the number of unexpired sessions. Expired ones still
// waiting for Cleanup are not counted.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, session := range s.sessions {
		if !s.expired(session) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close drops every session
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*Session)
	return nil
}

func (s *MemoryStore) expired(session *Session) bool {
	return !session.Info.ExpiresAt.IsZero() && !s.now().Before(session.Info.ExpiresAt)
}
