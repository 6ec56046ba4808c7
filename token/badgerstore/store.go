// Package badgerstore keeps token records in an embedded Badger database.
//
// Layout:
//
//	t/<fingerprint>            -> JSON token.Record (TTL = token TTL)
//	u/<hex(uid)>/<fingerprint> -> empty            (TTL = token TTL)
//
// Authenticate runs in a single read-write transaction; Badger's conflict
// detection guarantees that only one of several concurrent presentations commits.
package badgerstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/jrsteele09/go-passwordless/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var _ token.Store = (*Store)(nil)

type Store struct {
	db      *badger.DB
	nowFunc func() time.Time
}

type Option func(*Store)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// Open opens a Badger database at dir. An empty dir opens an in-memory database.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "[badgerstore.Open] badger.Open")
	}
	return db, nil
}

func New(db *badger.DB, options ...Option) *Store {
	s := &Store{
		db:      db,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func tokenKey(fp string) []byte {
	return []byte("t/" + fp)
}

func userPrefix(uid string) []byte {
	return []byte("u/" + hex.EncodeToString([]byte(uid)) + "/")
}

func userKey(uid, fp string) []byte {
	return append(userPrefix(uid), fp...)
}

func (s *Store) Store(_ context.Context, tok, uid string, ttl time.Duration, origin string) error {
	if err := token.Validate(tok, uid, ttl); err != nil {
		return err
	}

	record := token.NewRecord(tok, uid, ttl, origin, s.nowFunc())
	value, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "[badgerstore.Store] json.Marshal")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if previous, err := get(txn, record.Fingerprint); err == nil {
			if err := txn.Delete(userKey(previous.UID, previous.Fingerprint)); err != nil {
				return err
			}
		} else if !errors.Is(err, token.ErrTokenNotFound) {
			return err
		}
		if err := txn.SetEntry(badger.NewEntry(tokenKey(record.Fingerprint), value).WithTTL(ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(userKey(uid, record.Fingerprint), nil).WithTTL(ttl))
	})
	if err != nil {
		return errors.Wrap(err, "[badgerstore.Store] db.Update")
	}
	return nil
}

func (s *Store) Authenticate(_ context.Context, tok, uid string) (*token.Record, error) {
	record, err := s.consume(token.Fingerprint(tok), uid)
	if err != nil {
		return nil, err
	}
	if record.Expired(s.nowFunc()) {
		return nil, token.ErrTokenExpired
	}
	return record, nil
}

func (s *Store) Invalidate(_ context.Context, tok string) error {
	if _, err := s.consume(token.Fingerprint(tok), ""); err != nil && !errors.Is(err, token.ErrTokenNotFound) {
		return err
	}
	return nil
}

func (s *Store) consume(fp, uid string) (*token.Record, error) {
	var record *token.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		found, err := get(txn, fp)
		if err != nil {
			return err
		}
		if !found.Matches(uid) {
			return token.ErrTokenNotFound
		}
		if err := txn.Delete(tokenKey(fp)); err != nil {
			return err
		}
		if err := txn.Delete(userKey(found.UID, fp)); err != nil {
			return err
		}
		record = found
		return nil
	})
	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, token.ErrTokenNotFound), errors.Is(err, badger.ErrConflict):
		// a conflicting commit means a concurrent presentation already consumed it
		return nil, token.ErrTokenNotFound
	default:
		return nil, errors.Wrap(err, "[badgerstore.consume] db.Update")
	}
}

func get(txn *badger.Txn, fp string) (*token.Record, error) {
	item, err := txn.Get(tokenKey(fp))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, token.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	var record token.Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	}); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) InvalidateUser(_ context.Context, uid string) error {
	prefix := userPrefix(uid)
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var fps []string
		for it.Rewind(); it.Valid(); it.Next() {
			fps = append(fps, string(it.Item().Key()[len(prefix):]))
		}
		it.Close()

		for _, fp := range fps {
			if err := txn.Delete(tokenKey(fp)); err != nil {
				return err
			}
			if err := txn.Delete(userKey(uid, fp)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[badgerstore.InvalidateUser] db.Update")
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return errors.Wrap(err, "[badgerstore.Clear] DropAll")
	}
	return nil
}

func (s *Store) Length(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("t/")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "[badgerstore.Length] db.View")
	}
	return count, nil
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Trace().Str("component", "badger").Msgf(format, args...)
}
