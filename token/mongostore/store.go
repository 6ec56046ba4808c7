package mongostore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/token"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultDBName is the default database name.
	DefaultDBName = "passwordless"

	// DefaultCollectionName is the default collection holding token records.
	DefaultCollectionName = "tokens"
)

var _ token.Store = (*Store)(nil)

// Store keeps token records in MongoDB, one document per token keyed by fingerprint.
// A TTL index on "exp" lets the server purge expired documents on its own.
type Store struct {
	coll    *mongo.Collection
	nowFunc func() time.Time
}

type Option func(*Store)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// New creates the store on coll and ensures its indexes.
func New(ctx context.Context, coll *mongo.Collection, opts ...Option) (*Store, error) {
	s := &Store{
		coll:    coll,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uid", Value: 1}}},
		{Keys: bson.D{{Key: "exp", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "[mongostore.New] CreateMany indexes")
	}
	return s, nil
}

func (s *Store) Store(ctx context.Context, tok, uid string, ttl time.Duration, origin string) error {
	if err := token.Validate(tok, uid, ttl); err != nil {
		return err
	}

	record := token.NewRecord(tok, uid, ttl, origin, s.nowFunc())
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": record.Fingerprint}, record, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "[mongostore.Store] ReplaceOne")
	}
	return nil
}

func (s *Store) Authenticate(ctx context.Context, tok, uid string) (*token.Record, error) {
	filter := bson.M{"_id": token.Fingerprint(tok)}
	if uid != "" {
		filter["uid"] = uid
	}

	var record token.Record
	err := s.coll.FindOneAndDelete(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, token.ErrTokenNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[mongostore.Authenticate] FindOneAndDelete")
	}
	if record.Expired(s.nowFunc()) {
		return nil, token.ErrTokenExpired
	}
	return &record, nil
}

func (s *Store) Invalidate(ctx context.Context, tok string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": token.Fingerprint(tok)}); err != nil {
		return errors.Wrap(err, "[mongostore.Invalidate] DeleteOne")
	}
	return nil
}

func (s *Store) InvalidateUser(ctx context.Context, uid string) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"uid": uid}); err != nil {
		return errors.Wrap(err, "[mongostore.InvalidateUser] DeleteMany")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return errors.Wrap(err, "[mongostore.Clear] DeleteMany")
	}
	return nil
}

func (s *Store) Length(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "[mongostore.Length] CountDocuments")
	}
	return int(n), nil
}
