package main

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/jrsteele09/go-passwordless/sessions"
	sessionredis "github.com/jrsteele09/go-passwordless/sessions/redisstore"
	"github.com/jrsteele09/go-passwordless/token"
	"github.com/jrsteele09/go-passwordless/token/badgerstore"
	"github.com/jrsteele09/go-passwordless/token/gormstore"
	"github.com/jrsteele09/go-passwordless/token/memstore"
	"github.com/jrsteele09/go-passwordless/token/mongostore"
	"github.com/jrsteele09/go-passwordless/token/redisstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// backends holds the token and session stores picked by the configuration.
type backends struct {
	tokens   token.Store
	sessions sessions.Store

	// sweepers remove expired entries from stores that do not expire them natively.
	sweepers []sweeper
	closers  []func() error
	redis    *redis.Client
}

type sweeper struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

func (b *backends) addSweeper(name string, run func(ctx context.Context) (int64, error)) {
	b.sweepers = append(b.sweepers, sweeper{name: name, run: run})
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Err(err).Msg("closing backend")
		}
	}
}

func openBackends(ctx context.Context, cfg config.StoreConfig) (*backends, error) {
	b := &backends{}
	if err := b.openTokens(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openSessions(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	log.Info().Str("tokens", cfg.GetStore()).Str("sessions", cfg.GetSessionStore()).Msg("stores opened")
	return b, nil
}

func (b *backends) openTokens(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.GetStore() {
	case "memory":
		store := memstore.New()
		b.tokens = store
		b.addSweeper("tokens", func(context.Context) (int64, error) {
			return int64(store.Sweep(time.Now())), nil
		})

	case "redis":
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return err
		}
		b.tokens = redisstore.New(client)

	case "badger":
		db, err := badgerstore.Open(cfg.GetBadgerDir())
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)
		b.tokens = badgerstore.New(db)

	case "sql":
		db, err := gormstore.Open(cfg.GetSQLDialect(), cfg.GetSQLDSN())
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return errors.Wrap(err, "[openTokens] gorm DB")
		}
		b.closers = append(b.closers, sqlDB.Close)
		store, err := gormstore.New(db)
		if err != nil {
			return err
		}
		b.tokens = store
		b.addSweeper("tokens", store.DeleteExpired)

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.GetMongoURI()))
		if err != nil {
			return errors.Wrap(err, "[openTokens] mongo.Connect")
		}
		b.closers = append(b.closers, func() error {
			return client.Disconnect(context.Background())
		})
		if err := client.Ping(connectCtx, nil); err != nil {
			return errors.Wrap(err, "[openTokens] mongo Ping")
		}
		coll := client.Database(cfg.GetMongoDB()).Collection(mongostore.DefaultCollectionName)
		store, err := mongostore.New(connectCtx, coll)
		if err != nil {
			return err
		}
		b.tokens = store

	default:
		return errors.Errorf("[openTokens] unknown store %q", cfg.GetStore())
	}
	return nil
}

func (b *backends) openSessions(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.GetSessionStore() {
	case "memory":
		store := sessions.NewInMemoryStore()
		b.sessions = store
		b.addSweeper("sessions", func(context.Context) (int64, error) {
			return int64(store.Sweep(time.Now())), nil
		})
	case "redis":
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return err
		}
		b.sessions = sessionredis.New(client)
	default:
		return errors.Errorf("[openSessions] unknown session store %q", cfg.GetSessionStore())
	}
	return nil
}

// redisClient connects once and is shared by the token and session stores.
func (b *backends) redisClient(ctx context.Context, cfg config.StoreConfig) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
	b.closers = append(b.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Wrapf(err, "[redisClient] ping %s", cfg.GetRedisAddr())
	}
	b.redis = client
	return client, nil
}

// sweep periodically removes expired tokens and sessions until ctx is done.
func sweep(ctx context.Context, b *backends, interval time.Duration) {
	if len(b.sweepers) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, b)
		}
	}
}

func sweepOnce(ctx context.Context, b *backends) {
	for _, s := range b.sweepers {
		n, err := s.run(ctx)
		if err != nil {
			log.Err(err).Str("store", s.name).Msg("sweeping expired entries")
			continue
		}
		if n > 0 {
			log.Debug().Str("store", s.name).Int64("removed", n).Msg("swept expired entries")
		}
	}
}
