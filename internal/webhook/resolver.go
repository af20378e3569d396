package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/metrics"
	"github.com/illegalcall/weight-insights/internal/models"
)

// ConfigStore is the persistence the resolver needs.
type ConfigStore interface {
	GetWebhookConfig(ctx context.Context) (models.WebhookConfig, error)
	SaveWebhookConfig(ctx context.Context, cfg models.WebhookConfig) (models.WebhookConfig, error)
	GetWebhookOverride(ctx context.Context, userID string) (string, error)
}

// Resolver decides where a user's webhook goes and serves the global config
// through a ConfigCache. With a ConfigVersion, a config update made by
// another process also marks the cached value stale.
type Resolver struct {
	store       ConfigStore
	cache       *ConfigCache
	version     ConfigVersion
	fallbackURL string
	log         *slog.Logger
}

// NewResolver creates a Resolver. version may be nil for a single-process
// setup, in which case only this resolver's UpdateConfig invalidates.
func NewResolver(store ConfigStore, cache *ConfigCache, version ConfigVersion, fallbackURL string, log *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, version: version, fallbackURL: fallbackURL, log: log}
}

// Config returns the global webhook config. It never fails: when the store
// is unavailable it serves the last cached value, else defaults pointing at
// the fallback URL.
func (r *Resolver) Config(ctx context.Context) models.WebhookConfig {
	cached, fresh, ok, cachedVersion, gen := r.cache.Get()
	version, versionKnown := r.currentVersion(ctx)
	if fresh && (!versionKnown || version == cachedVersion) {
		metrics.ConfigCacheLookups.WithLabelValues("hit").Inc()
		return cached
	}

	cfg, err := r.store.GetWebhookConfig(ctx)
	if err == nil {
		metrics.ConfigCacheLookups.WithLabelValues("miss").Inc()
		r.cache.Set(cfg, version, gen)
		return cfg
	}

	if ok {
		metrics.ConfigCacheLookups.WithLabelValues("stale").Inc()
		r.log.Warn("Failed to reload webhook config, serving cached value", "error", err)
		return cached
	}

	metrics.ConfigCacheLookups.WithLabelValues("fallback").Inc()
	r.log.Warn("Failed to load webhook config, using fallback URL", "error", err, "fallback_url", r.fallbackURL)
	return models.DefaultWebhookConfig(r.fallbackURL)
}

func (r *Resolver) currentVersion(ctx context.Context) (int64, bool) {
	if r.version == nil {
		return 0, false
	}
	v, err := r.version.Current(ctx)
	if err != nil {
		r.log.Warn("Failed to read webhook config version, trusting cache TTL", "error", err)
		return 0, false
	}
	return v, true
}

// ResolveURL returns the user's override URL when set, else the global URL.
// Overrides are read on every call and never cached.
func (r *Resolver) ResolveURL(ctx context.Context, userID string) (string, error) {
	if userID != "" {
		override, err := r.store.GetWebhookOverride(ctx, userID)
		switch {
		case err != nil && !errors.Is(err, apperror.ErrProfileNotFound):
			r.log.Warn("Failed to read webhook override, using global URL", "user_id", userID, "error", err)
		case override != "":
			return override, nil
		}
	}

	url := r.Config(ctx).URL
	if url == "" {
		url = r.fallbackURL
	}
	if url == "" {
		return "", apperror.ErrConfigurationMissing
	}
	return url, nil
}

// UpdateConfig persists cfg and invalidates the cache before returning, so
// the caller's next resolution sees the new values.
func (r *Resolver) UpdateConfig(ctx context.Context, cfg models.WebhookConfig) (models.WebhookConfig, error) {
	saved, err := r.store.SaveWebhookConfig(ctx, cfg)
	if err != nil {
		return saved, fmt.Errorf("failed to update webhook config: %w", err)
	}
	r.Invalidate()
	if r.version != nil {
		if _, err := r.version.Bump(ctx); err != nil {
			r.log.Warn("Failed to publish webhook config version, other processes refresh on TTL", "error", err)
		}
	}
	r.log.Info("Webhook config updated", "url", saved.URL, "lookback_days", saved.LookbackDays)
	return saved, nil
}

func (r *Resolver) Invalidate() {
	r.cache.Invalidate()
}
