// Package storetest holds the behavioural contract every token.Store backend must satisfy.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-passwordless/token"
	"github.com/stretchr/testify/require"
)

// Clock is a manually advanced time source shared with the store under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now().Truncate(time.Millisecond)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory returns an empty store whose expiry checks use now.
type Factory func(t *testing.T, now func() time.Time) token.Store

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	setup := func(t *testing.T) (token.Store, *Clock) {
		t.Helper()
		clock := NewClock()
		return newStore(t, clock.Now), clock
	}

	t.Run("RejectsIncompleteRecords", func(t *testing.T) {
		store, _ := setup(t)
		require.ErrorIs(t, store.Store(ctx, "", "UID/alice", time.Minute, ""), token.ErrInvalidRecord)
		require.ErrorIs(t, store.Store(ctx, "tok", "", time.Minute, ""), token.ErrInvalidRecord)
		require.ErrorIs(t, store.Store(ctx, "tok", "UID/alice", 0, ""), token.ErrInvalidRecord)
	})

	t.Run("SingleUse", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-1", "UID/alice", time.Hour, "/origin"))

		record, err := store.Authenticate(ctx, "tok-1", "UID/alice")
		require.NoError(t, err)
		require.Equal(t, "UID/alice", record.UID)
		require.Equal(t, "/origin", record.Origin)

		_, err = store.Authenticate(ctx, "tok-1", "UID/alice")
		require.ErrorIs(t, err, token.ErrTokenNotFound)
	})

	t.Run("TokenOnlyPresentation", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-2", "UID/alice", time.Hour, ""))

		record, err := store.Authenticate(ctx, "tok-2", "")
		require.NoError(t, err)
		require.Equal(t, "UID/alice", record.UID)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		store, _ := setup(t)
		_, err := store.Authenticate(ctx, "never-issued", "")
		require.ErrorIs(t, err, token.ErrTokenNotFound)
	})

	t.Run("Expiry", func(t *testing.T) {
		store, clock := setup(t)
		require.NoError(t, store.Store(ctx, "tok-3", "UID/alice", time.Minute, ""))

		clock.Advance(2 * time.Minute)
		_, err := store.Authenticate(ctx, "tok-3", "UID/alice")
		require.ErrorIs(t, err, token.ErrTokenExpired)

		_, err = store.Authenticate(ctx, "tok-3", "UID/alice")
		require.Error(t, err)
	})

	t.Run("Isolation", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-a", "UID/alice", time.Hour, ""))

		_, err := store.Authenticate(ctx, "tok-a", "UID/bob")
		require.ErrorIs(t, err, token.ErrTokenNotFound)

		// the mismatch must not consume alice's token
		record, err := store.Authenticate(ctx, "tok-a", "UID/alice")
		require.NoError(t, err)
		require.Equal(t, "UID/alice", record.UID)
	})

	t.Run("MultipleTokensPerUser", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-m1", "UID/alice", time.Hour, ""))
		require.NoError(t, store.Store(ctx, "tok-m2", "UID/alice", time.Hour, ""))

		_, err := store.Authenticate(ctx, "tok-m2", "UID/alice")
		require.NoError(t, err)
		_, err = store.Authenticate(ctx, "tok-m1", "UID/alice")
		require.NoError(t, err)
	})

	t.Run("Invalidate", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-i1", "UID/alice", time.Hour, ""))
		require.NoError(t, store.Store(ctx, "tok-i2", "UID/alice", time.Hour, ""))

		require.NoError(t, store.Invalidate(ctx, "tok-i1"))
		require.NoError(t, store.Invalidate(ctx, "not-there"))

		_, err := store.Authenticate(ctx, "tok-i1", "")
		require.ErrorIs(t, err, token.ErrTokenNotFound)
		_, err = store.Authenticate(ctx, "tok-i2", "")
		require.NoError(t, err)
	})

	t.Run("InvalidateUser", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-u1", "UID/alice", time.Hour, ""))
		require.NoError(t, store.Store(ctx, "tok-u2", "UID/alice", time.Hour, ""))
		require.NoError(t, store.Store(ctx, "tok-u3", "UID/bob", time.Hour, ""))

		require.NoError(t, store.InvalidateUser(ctx, "UID/alice"))

		_, err := store.Authenticate(ctx, "tok-u1", "")
		require.ErrorIs(t, err, token.ErrTokenNotFound)
		_, err = store.Authenticate(ctx, "tok-u2", "")
		require.ErrorIs(t, err, token.ErrTokenNotFound)
		_, err = store.Authenticate(ctx, "tok-u3", "UID/bob")
		require.NoError(t, err)
	})

	t.Run("ClearAndLength", func(t *testing.T) {
		store, _ := setup(t)
		n, err := store.Length(ctx)
		require.NoError(t, err)
		require.Zero(t, n)

		require.NoError(t, store.Store(ctx, "tok-c1", "UID/alice", time.Hour, ""))
		require.NoError(t, store.Store(ctx, "tok-c2", "UID/bob", time.Hour, ""))
		n, err = store.Length(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		require.NoError(t, store.Clear(ctx))
		n, err = store.Length(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("ConcurrentAuthenticateSucceedsOnce", func(t *testing.T) {
		store, _ := setup(t)
		require.NoError(t, store.Store(ctx, "tok-race", "UID/alice", time.Hour, ""))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Authenticate(ctx, "tok-race", "UID/alice"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})
}
