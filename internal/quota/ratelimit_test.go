package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	miniRedis, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(miniRedis.Close)

	client := redis.NewClient(&redis.Options{Addr: miniRedis.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client), miniRedis
}

func TestRateLimiterWindow(t *testing.T) {
	limiter, miniRedis := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, "admin", OperationWebhookTest, 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := limiter.Allow(ctx, "admin", OperationWebhookTest, 5, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := miniRedis.Get("ratelimit:webhook_test:admin")
	require.NoError(t, err)
	assert.Equal(t, "5", count, "rejected requests are not counted")

	miniRedis.FastForward(time.Hour)

	ok, err = limiter.Allow(ctx, "admin", OperationWebhookTest, 5, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts after expiry")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := setupRateLimiter(t)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "u1", OperationWebhookTest, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = limiter.Allow(ctx, "u1", OperationWebhookTest, 1, time.Minute)
	assert.False(t, ok)

	ok, _ = limiter.Allow(ctx, "u2", OperationWebhookTest, 1, time.Minute)
	assert.True(t, ok, "other users keep their own window")

	ok, _ = limiter.Allow(ctx, "u1", "export", 1, time.Minute)
	assert.True(t, ok, "other operations keep their own window")
}

func TestRateLimiterRedisDown(t *testing.T) {
	limiter, miniRedis := setupRateLimiter(t)
	miniRedis.Close()

	ok, err := limiter.Allow(context.Background(), "u1", OperationWebhookTest, 5, time.Hour)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRateLimiterZeroMax(t *testing.T) {
	limiter, _ := setupRateLimiter(t)

	ok, err := limiter.Allow(context.Background(), "u1", OperationWebhookTest, 0, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}
