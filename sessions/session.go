package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side state behind a session cookie.
// A Session is owned by the request handling it and is not safe for concurrent use.
type Session struct {
	ID        string            `json:"id"`
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`

	dirty bool
	renew bool
}

func New(now time.Time, maxAge time.Duration) *Session {
	return &Session{
		ID:        NewID(),
		Values:    make(map[string]string),
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.New().String()
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; !ok {
		return
	}
	delete(s.Values, key)
	s.dirty = true
}

// Modified reports whether Set or Delete changed the session since it was loaded.
func (s *Session) Modified() bool {
	return s.dirty
}

// Renew asks the session transport to issue a fresh ID, e.g. after a privilege change.
func (s *Session) Renew() {
	s.renew = true
	s.dirty = true
}

func (s *Session) RenewRequested() bool {
	return s.renew
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Clone returns a copy that shares no state with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Values = make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		c.Values[k] = v
	}
	c.dirty = false
	c.renew = false
	return &c
}

// Store persists sessions by ID.
type Store interface {
	// Load returns ErrSessionNotFound for unknown or expired sessions.
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
