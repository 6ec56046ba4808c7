package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-passwordless/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "passwordless:"

var _ token.Store = (*Store)(nil)

// storeScript writes the record, moves the fingerprint to the new owner's index
// and stretches the index TTL to cover the longest-lived token.
var storeScript = redis.NewScript(`
	local previous = redis.call('GET', KEYS[1])
	if previous then
		local rec = cjson.decode(previous)
		redis.call('SREM', ARGV[4] .. rec.uid, ARGV[3])
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	redis.call('SADD', KEYS[2], ARGV[3])
	if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[2]) then
		redis.call('PEXPIRE', KEYS[2], ARGV[2])
	end
	return 1
`)

// consumeScript is the atomic read-and-delete used by Authenticate and Invalidate.
// ARGV[1] is the expected owner, empty for any.
var consumeScript = redis.NewScript(`
	local value = redis.call('GET', KEYS[1])
	if not value then
		return false
	end
	local rec = cjson.decode(value)
	if ARGV[1] ~= '' and rec.uid ~= ARGV[1] then
		return false
	end
	redis.call('DEL', KEYS[1])
	redis.call('SREM', ARGV[2] .. rec.uid, ARGV[3])
	return value
`)

var invalidateUserScript = redis.NewScript(`
	local fps = redis.call('SMEMBERS', KEYS[1])
	for _, fp in ipairs(fps) do
		redis.call('DEL', ARGV[1] .. fp)
	end
	redis.call('DEL', KEYS[1])
	return #fps
`)

// Store keeps token records in Redis. Record keys expire natively with the token TTL.
// The scripts derive the owner index key from the stored record, so the store
// needs a single-node client rather than a cluster one.
type Store struct {
	client  *redis.Client
	prefix  string
	nowFunc func() time.Time
}

type Option func(*Store)

// WithPrefix sets the key prefix. Defaults to "passwordless:".
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

func New(client *redis.Client, options ...Option) *Store {
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

func (s *Store) tokenKey(fp string) string {
	return s.prefix + "token:" + fp
}

func (s *Store) userKey(uid string) string {
	return s.prefix + "user:" + uid
}

func (s *Store) Store(ctx context.Context, tok, uid string, ttl time.Duration, origin string) error {
	if err := token.Validate(tok, uid, ttl); err != nil {
		return err
	}

	record := token.NewRecord(tok, uid, ttl, origin, s.nowFunc())
	value, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "[redisstore.Store] json.Marshal")
	}

	keys := []string{s.tokenKey(record.Fingerprint), s.userKey(uid)}
	if err := storeScript.Run(ctx, s.client, keys, value, pttl(ttl), record.Fingerprint, s.prefix+"user:").Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Store] storeScript")
	}
	return nil
}

// pttl converts ttl to whole milliseconds for PX, which rejects 0.
func pttl(ttl time.Duration) int64 {
	return max(ttl.Milliseconds(), 1)
}

func (s *Store) Authenticate(ctx context.Context, tok, uid string) (*token.Record, error) {
	record, err := s.consume(ctx, token.Fingerprint(tok), uid)
	if err != nil {
		return nil, err
	}
	if record.Expired(s.nowFunc()) {
		return nil, token.ErrTokenExpired
	}
	return record, nil
}

func (s *Store) Invalidate(ctx context.Context, tok string) error {
	if _, err := s.consume(ctx, token.Fingerprint(tok), ""); err != nil && !errors.Is(err, token.ErrTokenNotFound) {
		return err
	}
	return nil
}

func (s *Store) consume(ctx context.Context, fp, uid string) (*token.Record, error) {
	value, err := consumeScript.Run(ctx, s.client, []string{s.tokenKey(fp)}, uid, s.prefix+"user:", fp).Text()
	if err == redis.Nil {
		return nil, token.ErrTokenNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.consume] consumeScript")
	}

	var record token.Record
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, errors.Wrap(err, "[redisstore.consume] json.Unmarshal")
	}
	return &record, nil
}

func (s *Store) InvalidateUser(ctx context.Context, uid string) error {
	if err := invalidateUserScript.Run(ctx, s.client, []string{s.userKey(uid)}, s.prefix+"token:").Err(); err != nil {
		return errors.Wrap(err, "[redisstore.InvalidateUser] invalidateUserScript")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, "[redisstore.Clear] Del")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Clear] Scan")
	}
	return nil
}

func (s *Store) Length(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"token:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Wrap(err, "[redisstore.Length] Scan")
	}
	return count, nil
}
