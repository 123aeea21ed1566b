package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studynotes-client/internal/domain"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Sessions served by this process are kept in a local map; Redis holds a
// liveness key per session (client:session:{id}) that expires unless touched,
// so other instances can look sessions up.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string]domain.LiveSession
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		client: client,
		ttl:    ttl,
		local:  make(map[string]domain.LiveSession),
	}
}

func (r *SessionRegistry) Register(ctx context.Context, session domain.LiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	r.mu.Lock()
	r.local[session.ID] = session
	r.mu.Unlock()
	if err := r.client.Set(ctx, r.key(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

// Touch extends the liveness key of a session this process serves.
func (r *SessionRegistry) Touch(ctx context.Context, id string) error {
	r.mu.RLock()
	_, ok := r.local[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	if r.ttl <= 0 {
		return nil
	}
	if err := r.client.Expire(ctx, r.key(id), r.ttl).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Get finds a session served by any instance.
func (r *SessionRegistry) Get(ctx context.Context, id string) (domain.LiveSession, error) {
	r.mu.RLock()
	session, ok := r.local[id]
	r.mu.RUnlock()
	if ok {
		return session, nil
	}

	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.LiveSession{}, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.LiveSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (r *SessionRegistry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.local, id)
	r.mu.Unlock()
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("unregister session: %w", err)
	}
	return nil
}

// Active counts the sessions served by this process.
func (r *SessionRegistry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.local)
}

func (r *SessionRegistry) key(id string) string {
	return "client:session:" + id
}
