package webhook

import (
	"sync"
	"time"

	"github.com/illegalcall/weight-insights/internal/models"
)

// ConfigCache holds the global webhook config for a fixed TTL. After expiry
// or Invalidate the last value is kept only as a fallback for failed reloads.
//
// Every Invalidate bumps the generation. A reload captures the generation
// before reading the store and Set drops its value if an Invalidate happened
// in between, so a slow read cannot put an overwritten config back.
type ConfigCache struct {
	mu        sync.Mutex
	value     *models.WebhookConfig
	version   int64
	expiresAt time.Time
	gen       uint64
	ttl       time.Duration
	now       func() time.Time
}

func NewConfigCache(ttl time.Duration) *ConfigCache {
	return &ConfigCache{ttl: ttl, now: time.Now}
}

// Get returns the cached config, whether it is still fresh, the shared
// config version it was loaded at and the current generation. ok is false
// when nothing was ever cached.
func (c *ConfigCache) Get() (cfg models.WebhookConfig, fresh, ok bool, version int64, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value == nil {
		return models.WebhookConfig{}, false, false, 0, c.gen
	}
	return *c.value, c.now().Before(c.expiresAt), true, c.version, c.gen
}

// Set stores cfg unless the cache was invalidated after gen was read. It
// reports whether the value was stored.
func (c *ConfigCache) Set(cfg models.WebhookConfig, version int64, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return false
	}
	c.value = &cfg
	c.version = version
	c.expiresAt = c.now().Add(c.ttl)
	return true
}

// Invalidate forces the next Get to report a stale value.
func (c *ConfigCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expiresAt = time.Time{}
	c.gen++
}
