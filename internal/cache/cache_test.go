package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/popeskul/evolution-gateway/internal/cache"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestRedisCache(t *testing.T) {
	client := setupTestRedis(t)
	c := cache.NewRedisCache(client)
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, c.Ping(ctx))
	})

	t.Run("claim is exclusive until released", func(t *testing.T) {
		ok, err := c.Claim(ctx, "ABC", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Claim(ctx, "ABC", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		ttl, err := client.TTL(ctx, "webhook:ABC").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, c.Release(ctx, "ABC"))

		ok, err = c.Claim(ctx, "ABC", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("claim expires", func(t *testing.T) {
		ok, err := c.Claim(ctx, "short", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		assert.Eventually(t, func() bool {
			ok, err := c.Claim(ctx, "short", time.Minute)
			return err == nil && ok
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("sent ids", func(t *testing.T) {
		_, found, err := c.LookupSent(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, c.RememberSent(ctx, "BAE5F0", 42, time.Minute))

		id, found, err := c.LookupSent(ctx, "BAE5F0")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(42), id)
	})

	t.Run("closed client fails", func(t *testing.T) {
		closed := redis.NewClient(&redis.Options{Addr: client.Options().Addr})
		require.NoError(t, closed.Close())
		broken := cache.NewRedisCache(closed)

		_, err := broken.Claim(ctx, "x", time.Minute)
		assert.Error(t, err)
		assert.Error(t, broken.Ping(ctx))
	})
}
