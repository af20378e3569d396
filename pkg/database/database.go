package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr, redisPassword string, redisDB int) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

func (c *Clients) Close() {
	if err := c.Redis.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}
	if err := c.DB.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// schema mirrors the hosted tables this service reads and writes. On the
// hosted project these already exist; the statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS webhook_config (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		lookback_days INTEGER NOT NULL DEFAULT 30 CHECK (lookback_days > 0),
		include_user_data BOOLEAN NOT NULL DEFAULT TRUE,
		include_weight_data BOOLEAN NOT NULL DEFAULT TRUE,
		include_goal_data BOOLEAN NOT NULL DEFAULT TRUE,
		include_activity_data BOOLEAN NOT NULL DEFAULT FALSE,
		include_detailed_analysis BOOLEAN NOT NULL DEFAULT FALSE,
		default_daily_limit INTEGER NOT NULL DEFAULT 10 CHECK (default_daily_limit > 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		preferred_unit TEXT NOT NULL DEFAULT 'kg' CHECK (preferred_unit IN ('kg', 'lbs')),
		timezone TEXT NOT NULL DEFAULT 'UTC',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
		webhook_url TEXT,
		webhook_limit INTEGER NOT NULL DEFAULT 10,
		webhook_count INTEGER NOT NULL DEFAULT 0,
		last_webhook_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS weight_entries (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		weight NUMERIC(6,2) NOT NULL CHECK (weight > 0),
		unit TEXT NOT NULL CHECK (unit IN ('kg', 'lbs')),
		date DATE NOT NULL,
		time TEXT NOT NULL DEFAULT '00:00',
		note TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS weight_entries_user_date_idx ON weight_entries (user_id, date)`,
	`CREATE TABLE IF NOT EXISTS goals (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		start_weight NUMERIC(6,2) NOT NULL,
		target_weight NUMERIC(6,2) NOT NULL,
		unit TEXT NOT NULL CHECK (unit IN ('kg', 'lbs')),
		target_date DATE,
		achieved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'insights',
		url TEXT NOT NULL,
		request_payload JSONB NOT NULL,
		response_payload JSONB,
		response_status INTEGER,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'success', 'error')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS webhook_logs_user_created_idx ON webhook_logs (user_id, created_at DESC)`,
}

func (c *Clients) CreateTables() error {
	for _, stmt := range schema {
		if _, err := c.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	slog.Info("✅ Tables are ready!")
	return nil
}
