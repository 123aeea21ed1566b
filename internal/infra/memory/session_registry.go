package memory

import (
	"context"
	"sync"

	"studynotes-client/internal/domain"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]domain.LiveSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]domain.LiveSession),
	}
}

func (r *SessionRegistry) Register(_ context.Context, session domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *SessionRegistry) Touch(_ context.Context, id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRegistry) Get(_ context.Context, id string) (domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *SessionRegistry) Unregister(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *SessionRegistry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
