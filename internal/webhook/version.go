package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const configVersionKey = "insights:webhook-config:version"

// ConfigVersion is a counter shared by every process that caches the
// webhook config. Writers bump it; readers treat a cached value loaded at an
// older version as stale.
type ConfigVersion interface {
	Current(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
}

// RedisConfigVersion keeps the counter in Redis.
type RedisConfigVersion struct {
	client redis.Cmdable
}

func NewRedisConfigVersion(client redis.Cmdable) *RedisConfigVersion {
	return &RedisConfigVersion{client: client}
}

func (v *RedisConfigVersion) Current(ctx context.Context) (int64, error) {
	n, err := v.client.Get(ctx, configVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read config version: %w", err)
	}
	return n, nil
}

func (v *RedisConfigVersion) Bump(ctx context.Context) (int64, error) {
	n, err := v.client.Incr(ctx, configVersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump config version: %w", err)
	}
	return n, nil
}
