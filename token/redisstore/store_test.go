package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-passwordless/token"
	"github.com/jrsteele09/go-passwordless/token/redisstore"
	"github.com/jrsteele09/go-passwordless/token/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Redis, e.g. REDIS_ADDR=localhost:6379 go test ./token/redisstore
func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	storetest.Run(t, func(t *testing.T, now func() time.Time) token.Store {
		// a unique prefix per subtest keeps Clear and Length isolated
		store := redisstore.New(client,
			redisstore.WithPrefix("passwordless-test:"+uuid.NewString()+":"),
			redisstore.WithNowFunc(now),
		)
		t.Cleanup(func() { _ = store.Clear(context.Background()) })
		return store
	})
}

func TestPTTLNeverZero(t *testing.T) {
	require.Equal(t, int64(1), redisstore.PTTL(time.Microsecond))
	require.Equal(t, int64(1), redisstore.PTTL(time.Millisecond))
	require.Equal(t, int64(1500), redisstore.PTTL(1500*time.Millisecond))
}
