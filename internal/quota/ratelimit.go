package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/weight-insights/internal/metrics"
)

// Operations throttled by the RateLimiter.
const (
	OperationWebhookTest = "webhook_test"
)

// windowScript counts requests in a fixed window that starts with the first
// request. Rejected requests are not counted.
var windowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RateLimiter keeps a request window per (user, operation) in Redis. Its
// keys never overlap with the daily insights quota, which lives in Postgres.
type RateLimiter struct {
	client redis.Scripter
}

func NewRateLimiter(client redis.Scripter) *RateLimiter {
	return &RateLimiter{client: client}
}

func rateLimitKey(userID, operation string) string {
	return fmt.Sprintf("ratelimit:%s:%s", operation, userID)
}

// Allow records one request and reports whether it fits in the window.
func (l *RateLimiter) Allow(ctx context.Context, userID, operation string, maxRequests int, window time.Duration) (bool, error) {
	if maxRequests <= 0 {
		return false, nil
	}

	allowed, err := windowScript.Run(ctx, l.client,
		[]string{rateLimitKey(userID, operation)},
		maxRequests, window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if allowed == 0 {
		metrics.RateLimited.WithLabelValues(operation).Inc()
		return false, nil
	}
	return true, nil
}
