package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"embed-bot/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBackend is a Backend plus a way to move its clock forward.
type testBackend struct {
	Backend
	advance func(time.Duration)
}

func newMemoryTestBackend(t *testing.T) testBackend {
	t.Helper()
	backend, err := NewMemoryBackend(128)
	require.NoError(t, err)

	now := time.Now()
	backend.now = func() time.Time { return now }
	return testBackend{
		Backend: backend,
		advance: func(d time.Duration) { now = now.Add(d) },
	}
}

func newRedisTestBackend(t *testing.T) (testBackend, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	backend := NewRedisBackendFromClient(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	t.Cleanup(func() { backend.Close() })
	return testBackend{Backend: backend, advance: server.FastForward}, server
}

// eachBackend runs fn against the in-memory and the Redis backend.
func eachBackend(t *testing.T, fn func(t *testing.T, c *Cache, backend testBackend)) {
	t.Run("memory", func(t *testing.T) {
		backend := newMemoryTestBackend(t)
		fn(t, New(backend, time.Minute), backend)
	})
	t.Run("redis", func(t *testing.T) {
		backend, _ := newRedisTestBackend(t)
		fn(t, New(backend, time.Minute), backend)
	})
}

func TestGetNeverWrittenIsNoHit(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, _ testBackend) {
		var server *models.Server
		lookup, err := c.Get(context.Background(), ServerKey(models.VendorDiscord, "1"), &server)
		require.NoError(t, err)
		assert.Equal(t, NoHit, lookup)
		assert.Nil(t, server)
	})
}

func TestCachedEmptyValueIsHit(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, _ testBackend) {
		ctx := context.Background()
		key := ServerKey(models.VendorDiscord, "1")

		require.NoError(t, c.Set(ctx, key, nil))

		server := &models.Server{UID: "stale"}
		lookup, err := c.Get(ctx, key, &server)
		require.NoError(t, err)
		assert.Equal(t, Hit, lookup)
		assert.Nil(t, server)
	})
}

func TestSetGetRoundTrip(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, _ testBackend) {
		ctx := context.Background()
		key := ServerKey(models.VendorDiscord, "42")

		want := &models.Server{
			ID:        7,
			VendorUID: "42",
			Vendor:    models.VendorDiscord,
			Tier:      models.TierFree,
			Status:    models.StatusActive,
			Integrations: map[models.IntegrationKind]models.Integration{
				models.IntegrationTikTok: {ID: 3, Kind: models.IntegrationTikTok, Enabled: true, PostFormat: "{url}"},
			},
		}
		require.NoError(t, c.Set(ctx, key, want))

		var got *models.Server
		lookup, err := c.Get(ctx, key, &got)
		require.NoError(t, err)
		require.Equal(t, Hit, lookup)
		assert.Equal(t, want, got)
	})
}

func TestDeleteInvalidates(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, _ testBackend) {
		ctx := context.Background()
		key := ServerPostCountKey(1)

		require.NoError(t, c.Set(ctx, key, 5))
		require.NoError(t, c.Delete(ctx, key))

		var n int64
		lookup, err := c.Get(ctx, key, &n)
		require.NoError(t, err)
		assert.Equal(t, NoHit, lookup)
	})
}

func TestTTLOverride(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, backend testBackend) {
		ctx := context.Background()
		short := ServerPostCountKey(1)
		long := ServerPostCountKey(2)
		require.NoError(t, c.Set(ctx, short, 1, WithTTL(10*time.Second)))
		require.NoError(t, c.Set(ctx, long, 1))

		backend.advance(30 * time.Second)

		var n int64
		lookup, err := c.Get(ctx, short, &n)
		require.NoError(t, err)
		assert.Equal(t, NoHit, lookup)

		lookup, err = c.Get(ctx, long, &n)
		require.NoError(t, err)
		assert.Equal(t, Hit, lookup)
	})
}

func TestIncrementMissingKeyStaysMissing(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, _ testBackend) {
		ctx := context.Background()
		key := ServerPostCountKey(9)

		_, ok, err := c.Increment(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		var n int64
		lookup, err := c.Get(ctx, key, &n)
		require.NoError(t, err)
		assert.Equal(t, NoHit, lookup)
	})
}

func TestIncrementConcurrent(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, _ testBackend) {
		ctx := context.Background()
		key := ServerPostCountKey(1)
		require.NoError(t, c.Set(ctx, key, 10))

		const workers = 50
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := c.Increment(ctx, key)
				assert.NoError(t, err)
				assert.True(t, ok)
			}()
		}
		wg.Wait()

		var n int64
		lookup, err := c.Get(ctx, key, &n)
		require.NoError(t, err)
		require.Equal(t, Hit, lookup)
		assert.Equal(t, int64(10+workers), n)
	})
}

func TestIncrementKeepsTTL(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, backend testBackend) {
		ctx := context.Background()
		key := ServerPostCountKey(3)
		require.NoError(t, c.Set(ctx, key, 1, WithTTL(10*time.Second)))

		backend.advance(5 * time.Second)
		n, ok, err := c.Increment(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), n)

		backend.advance(6 * time.Second)
		var got int64
		lookup, err := c.Get(ctx, key, &got)
		require.NoError(t, err)
		assert.Equal(t, NoHit, lookup)
	})
}

func TestUndecodableEntryIsDropped(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache, backend testBackend) {
		ctx := context.Background()
		key := ServerPostCountKey(1)
		require.NoError(t, backend.Set(ctx, key.String(), []byte("{not json"), time.Minute))

		var n int64
		lookup, err := c.Get(ctx, key, &n)
		require.NoError(t, err)
		assert.Equal(t, NoHit, lookup)

		_, ok, err := backend.Get(ctx, key.String())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRedisIncrementIsSingleCounter(t *testing.T) {
	backend, server := newRedisTestBackend(t)
	ctx := context.Background()
	key := ServerPostCountKey(4).String()

	_, ok, err := backend.Increment(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, server.Exists(key))

	require.NoError(t, backend.Set(ctx, key, []byte("41"), time.Minute))
	n, ok, err := backend.Increment(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	value, err := server.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "42", value)
	assert.Equal(t, time.Minute, server.TTL(key))
}

func TestNewRedisBackendPingFails(t *testing.T) {
	server := miniredis.RunT(t)
	server.SetError("ERR unavailable")

	_, err := NewRedisBackend(context.Background(), &redis.Options{Addr: server.Addr(), MaxRetries: -1})
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "embedbot:server:discord:123", ServerKey(models.VendorDiscord, "123").String())
	assert.Equal(t, "embedbot:server_post_count:5", ServerPostCountKey(5).String())
}
