package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-passwordless/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "passwordless:session:"

var _ sessions.Store = (*Store)(nil)

// Store keeps sessions in Redis as JSON, expiring with the session.
type Store struct {
	client  redis.UniversalClient
	prefix  string
	nowFunc func() time.Time
}

type Option func(*Store)

// WithPrefix sets the key prefix. Defaults to "passwordless:session:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func New(client redis.UniversalClient, options ...Option) *Store {
	s := &Store{
		client:  client,
		prefix:  defaultPrefix,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Load(ctx context.Context, id string) (*sessions.Session, error) {
	if id == "" {
		return nil, sessions.ErrSessionNotFound
	}

	value, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessions.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.Load] GET")
	}

	var session sessions.Session
	if err := json.Unmarshal(value, &session); err != nil {
		return nil, errors.Wrap(err, "[redisstore.Load] Unmarshal")
	}
	if session.Expired(s.nowFunc()) {
		return nil, sessions.ErrSessionNotFound
	}
	return &session, nil
}

func (s *Store) Save(ctx context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("[redisstore.Save] session ID is required")
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.nowFunc())
		if ttl <= 0 {
			return s.Delete(ctx, session.ID)
		}
	}

	value, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[redisstore.Save] Marshal")
	}
	if err := s.client.Set(ctx, s.key(session.ID), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Save] SET")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Delete] DEL")
	}
	return nil
}
