package main

import (
	"context"
	"net/http"
	"os"

	"github.com/illegalcall/weight-insights/internal/config"
	"github.com/illegalcall/weight-insights/internal/insights"
	"github.com/illegalcall/weight-insights/internal/logger"
	"github.com/illegalcall/weight-insights/internal/quota"
	"github.com/illegalcall/weight-insights/internal/storage"
	"github.com/illegalcall/weight-insights/internal/webhook"
	"github.com/illegalcall/weight-insights/internal/worker"
	"github.com/illegalcall/weight-insights/pkg/database"
	"github.com/illegalcall/weight-insights/pkg/kafka"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.Init(cfg.Log)

	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("✅ Connected to databases")

	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		log.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	log.Info("✅ Connected to Kafka")

	store := storage.NewPostgresStore(db.DB)
	resolver := webhook.NewResolver(store, webhook.NewConfigCache(cfg.Webhook.CacheTTL), webhook.NewRedisConfigVersion(db.Redis), cfg.Webhook.FallbackURL, log)

	service := insights.NewService(insights.Deps{
		Tracker:    quota.NewTracker(store, log),
		Limiter:    quota.NewRateLimiter(db.Redis),
		Builder:    insights.NewBuilder(store, resolver),
		Resolver:   resolver,
		Dispatcher: webhook.NewDispatcher(&http.Client{}, cfg.Webhook.MaxBodyBytes, log),
		Audit:      webhook.NewAuditLogger(store, cfg.Webhook.SummaryLimit, log),
	}, cfg.Webhook, cfg.RateLimit, log)

	w := worker.NewWorker(cfg, service, insights.NewStatusStore(db.Redis, cfg.Redis.StatusTTL), consumer, log)
	if err := w.Start(context.Background()); err != nil {
		log.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
