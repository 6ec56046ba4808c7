package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is an in-memory implementation of Store
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // sessionID -> Session
	nowFunc  func() time.Time
}

type InMemoryOption func(*InMemoryStore)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) InMemoryOption {
	return func(r *InMemoryStore) {
		r.nowFunc = now
	}
}

// NewInMemoryStore creates a new in-memory session store
func NewInMemoryStore(options ...InMemoryOption) *InMemoryStore {
	r := &InMemoryStore{
		sessions: make(map[string]*Session),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Load retrieves a session by ID
func (r *InMemoryStore) Load(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Expired(r.nowFunc()) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	// Hand out a copy so request handlers cannot modify the stored session
	return session.Clone(), nil
}

// Save creates or updates a session
func (r *InMemoryStore) Save(_ context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session.Clone()
	return nil
}

// Delete removes a session
func (r *InMemoryStore) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id) // Already doesn't exist, no error
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *InMemoryStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes every session expired at now and returns how many were removed.
func (r *InMemoryStore) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
