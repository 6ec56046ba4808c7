package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-passwordless/token"
)

var _ token.Store = (*InMemoryStore)(nil)

// InMemoryStore is a thread-safe in-memory token store.
// Expired records stay in memory until they are looked up or swept.
type InMemoryStore struct {
	records map[string]*token.Record       // fingerprint -> record
	users   map[string]map[string]struct{} // uid -> fingerprints
	nowFunc func() time.Time
	lock    sync.Mutex
}

type Option func(*InMemoryStore)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.nowFunc = now
	}
}

func New(options ...Option) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[string]*token.Record),
		users:   make(map[string]map[string]struct{}),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Store(_ context.Context, tok, uid string, ttl time.Duration, origin string) error {
	if err := token.Validate(tok, uid, ttl); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	record := token.NewRecord(tok, uid, ttl, origin, s.nowFunc())
	if existing, ok := s.records[record.Fingerprint]; ok {
		s.unindex(existing)
	}
	s.records[record.Fingerprint] = record
	if _, ok := s.users[uid]; !ok {
		s.users[uid] = make(map[string]struct{})
	}
	s.users[uid][record.Fingerprint] = struct{}{}
	return nil
}

func (s *InMemoryStore) Authenticate(_ context.Context, tok, uid string) (*token.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	record, ok := s.records[token.Fingerprint(tok)]
	if !ok || !record.Matches(uid) {
		return nil, token.ErrTokenNotFound
	}
	s.remove(record)
	if record.Expired(s.nowFunc()) {
		return nil, token.ErrTokenExpired
	}

	found := *record
	return &found, nil
}

func (s *InMemoryStore) Invalidate(_ context.Context, tok string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if record, ok := s.records[token.Fingerprint(tok)]; ok {
		s.remove(record)
	}
	return nil
}

func (s *InMemoryStore) InvalidateUser(_ context.Context, uid string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for fp := range s.users[uid] {
		delete(s.records, fp)
	}
	delete(s.users, uid)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.records = make(map[string]*token.Record)
	s.users = make(map[string]map[string]struct{})
	return nil
}

func (s *InMemoryStore) Length(_ context.Context) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.records), nil
}

// Sweep removes every record that has expired at now and returns how many were removed.
func (s *InMemoryStore) Sweep(now time.Time) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	removed := 0
	for _, record := range s.records {
		if record.Expired(now) {
			s.remove(record)
			removed++
		}
	}
	return removed
}

func (s *InMemoryStore) remove(record *token.Record) {
	delete(s.records, record.Fingerprint)
	s.unindex(record)
}

func (s *InMemoryStore) unindex(record *token.Record) {
	fps, ok := s.users[record.UID]
	if !ok {
		return
	}
	delete(fps, record.Fingerprint)
	if len(fps) == 0 {
		delete(s.users, record.UID)
	}
}
