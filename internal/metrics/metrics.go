// Package metrics holds the Prometheus collectors for webhook dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_webhook_dispatch_total",
		Help: "Webhook dispatch attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insights_webhook_dispatch_duration_seconds",
		Help:    "Time spent waiting on the webhook destination.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"kind"})

	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_quota_rejections_total",
		Help: "Insights requests rejected before dispatch, by reason.",
	}, []string{"reason"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_rate_limited_total",
		Help: "Operations rejected by the per-user window limiter.",
	}, []string{"operation"})

	ConfigCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_config_cache_lookups_total",
		Help: "Webhook config cache lookups by result (hit, miss, stale, fallback).",
	}, []string{"result"})
)
