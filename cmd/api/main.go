package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/weight-insights/internal/api"
	"github.com/illegalcall/weight-insights/internal/config"
	"github.com/illegalcall/weight-insights/internal/insights"
	"github.com/illegalcall/weight-insights/internal/logger"
	"github.com/illegalcall/weight-insights/internal/pkg/supabase"
	"github.com/illegalcall/weight-insights/internal/quota"
	"github.com/illegalcall/weight-insights/internal/storage"
	"github.com/illegalcall/weight-insights/internal/webhook"
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

	if err := db.CreateTables(); err != nil {
		log.Error("Failed to create tables", "error", err)
		os.Exit(1)
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		log.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	log.Info("✅ Connected to Kafka")

	auth, err := supabase.NewAuthenticator(cfg.Supabase.URL, cfg.Supabase.ServiceKey, log)
	if err != nil {
		log.Error("Failed to initialize Supabase auth", "error", err)
		os.Exit(1)
	}

	store := storage.NewPostgresStore(db.DB)
	resolver := webhook.NewResolver(store, webhook.NewConfigCache(cfg.Webhook.CacheTTL), webhook.NewRedisConfigVersion(db.Redis), cfg.Webhook.FallbackURL, log)
	tracker := quota.NewTracker(store, log)

	service := insights.NewService(insights.Deps{
		Tracker:    tracker,
		Limiter:    quota.NewRateLimiter(db.Redis),
		Builder:    insights.NewBuilder(store, resolver),
		Resolver:   resolver,
		Dispatcher: webhook.NewDispatcher(&http.Client{}, cfg.Webhook.MaxBodyBytes, log),
		Audit:      webhook.NewAuditLogger(store, cfg.Webhook.SummaryLimit, log),
	}, cfg.Webhook, cfg.RateLimit, log)

	server := api.NewServer(cfg, producer, api.Deps{
		Store:    store,
		Auth:     auth,
		Insights: service,
		Tracker:  tracker,
		Resolver: resolver,
		Statuses: insights.NewStatusStore(db.Redis, cfg.Redis.StatusTTL),
	}, log)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info("Received shutdown signal", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
}
