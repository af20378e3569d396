package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/models"
)

var (
	// ErrConfigNotFound means no administrator has saved a webhook config yet.
	ErrConfigNotFound = errors.New("webhook config not found")
	// ErrLogNotPending is returned when closing a log entry that is already closed.
	ErrLogNotPending = errors.New("webhook log is not pending")
)

// PostgresStore reads and writes the tables the insights subsystem depends on.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open sqlx handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const webhookConfigColumns = `url, lookback_days, include_user_data, include_weight_data, include_goal_data,
	include_activity_data, include_detailed_analysis, default_daily_limit, updated_at`

func (s *PostgresStore) GetWebhookConfig(ctx context.Context) (models.WebhookConfig, error) {
	var cfg models.WebhookConfig
	query := `SELECT ` + webhookConfigColumns + ` FROM webhook_config WHERE id = $1`
	if err := s.db.GetContext(ctx, &cfg, query, models.WebhookConfigID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cfg, ErrConfigNotFound
		}
		return cfg, fmt.Errorf("failed to load webhook config: %w", err)
	}
	return cfg, nil
}

// SaveWebhookConfig upserts the singleton config row.
func (s *PostgresStore) SaveWebhookConfig(ctx context.Context, cfg models.WebhookConfig) (models.WebhookConfig, error) {
	query := `INSERT INTO webhook_config (id, url, lookback_days, include_user_data, include_weight_data,
			include_goal_data, include_activity_data, include_detailed_analysis, default_daily_limit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			lookback_days = EXCLUDED.lookback_days,
			include_user_data = EXCLUDED.include_user_data,
			include_weight_data = EXCLUDED.include_weight_data,
			include_goal_data = EXCLUDED.include_goal_data,
			include_activity_data = EXCLUDED.include_activity_data,
			include_detailed_analysis = EXCLUDED.include_detailed_analysis,
			default_daily_limit = EXCLUDED.default_daily_limit,
			updated_at = NOW()
		RETURNING ` + webhookConfigColumns

	var saved models.WebhookConfig
	err := s.db.GetContext(ctx, &saved, query,
		models.WebhookConfigID, cfg.URL, cfg.LookbackDays, cfg.IncludeUserData, cfg.IncludeWeightData,
		cfg.IncludeGoalData, cfg.IncludeActivityData, cfg.IncludeDetailedAnalysis, cfg.DefaultDailyLimit,
	)
	if err != nil {
		return saved, fmt.Errorf("failed to save webhook config: %w", err)
	}
	return saved, nil
}

const profileColumns = `id, display_name, email, preferred_unit, timezone, is_admin, is_suspended,
	webhook_url, webhook_limit, webhook_count, last_webhook_date, created_at`

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	if err := s.db.GetContext(ctx, &p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, apperror.ErrProfileNotFound
		}
		return p, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// GetWebhookOverride returns the user's override URL, "" when unset.
func (s *PostgresStore) GetWebhookOverride(ctx context.Context, userID string) (string, error) {
	var url sql.NullString
	if err := s.db.GetContext(ctx, &url, `SELECT webhook_url FROM profiles WHERE id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.ErrProfileNotFound
		}
		return "", fmt.Errorf("failed to load webhook override: %w", err)
	}
	return url.String, nil
}

// CreateProfile inserts a profile and returns the stored row. It reports
// created=false when the profile already existed.
func (s *PostgresStore) CreateProfile(ctx context.Context, p models.Profile) (models.Profile, bool, error) {
	query := `INSERT INTO profiles (id, display_name, email, preferred_unit, timezone, webhook_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + profileColumns

	var created models.Profile
	err := s.db.GetContext(ctx, &created, query, p.ID, p.DisplayName, p.Email, p.PreferredUnit, p.Timezone, p.WebhookLimit)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := s.GetProfile(ctx, p.ID)
		return existing, false, getErr
	}
	if err != nil {
		return created, false, fmt.Errorf("failed to create profile: %w", err)
	}
	return created, true, nil
}

func (s *PostgresStore) UpdateWebhookSettings(ctx context.Context, userID string, settings models.ProfileWebhookSettings) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET webhook_url = $2, webhook_limit = $3, is_suspended = $4 WHERE id = $1`,
		userID, settings.WebhookURL, settings.WebhookLimit, settings.IsSuspended,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrProfileNotFound
	}
	return nil
}

// ConsumeQuota takes one request from the user's daily budget in a single
// conditional UPDATE. A stored count from before dayStart counts as zero.
// ok is false when the user is suspended or already at the limit; in that
// case nothing is written.
func (s *PostgresStore) ConsumeQuota(ctx context.Context, userID string, dayStart, now time.Time) (count, limit int, ok bool, err error) {
	query := `UPDATE profiles SET
			webhook_count = CASE
				WHEN last_webhook_date IS NULL OR last_webhook_date < $2 THEN 1
				ELSE webhook_count + 1
			END,
			last_webhook_date = $3
		WHERE id = $1
			AND NOT is_suspended
			AND webhook_limit > 0
			AND (last_webhook_date IS NULL OR last_webhook_date < $2 OR webhook_count < webhook_limit)
		RETURNING webhook_count, webhook_limit`

	var row struct {
		Count int `db:"webhook_count"`
		Limit int `db:"webhook_limit"`
	}
	err = s.db.GetContext(ctx, &row, query, userID, dayStart, now)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to consume quota: %w", err)
	}
	return row.Count, row.Limit, true, nil
}

// RefundQuota gives back a request consumed today that never reached the
// network.
func (s *PostgresStore) RefundQuota(ctx context.Context, userID string, dayStart time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET webhook_count = webhook_count - 1
		WHERE id = $1 AND webhook_count > 0 AND last_webhook_date >= $2`,
		userID, dayStart,
	)
	if err != nil {
		return fmt.Errorf("failed to refund quota: %w", err)
	}
	return nil
}

// ListWeightEntries returns entries dated on or after since's UTC calendar
// day, oldest first.
func (s *PostgresStore) ListWeightEntries(ctx context.Context, userID string, since time.Time) ([]models.WeightEntry, error) {
	entries := []models.WeightEntry{}
	query := `SELECT id, user_id, weight, unit, date, time, note FROM weight_entries
		WHERE user_id = $1 AND date >= $2::date
		ORDER BY date ASC, time ASC`
	if err := s.db.SelectContext(ctx, &entries, query, userID, since.UTC().Format(time.DateOnly)); err != nil {
		return nil, fmt.Errorf("failed to load weight entries: %w", err)
	}
	return entries, nil
}

// LatestOpenGoal returns the most recently created unachieved goal, or nil.
func (s *PostgresStore) LatestOpenGoal(ctx context.Context, userID string) (*models.Goal, error) {
	var g models.Goal
	query := `SELECT id, user_id, start_weight, target_weight, unit, target_date, achieved, created_at FROM goals
		WHERE user_id = $1 AND NOT achieved
		ORDER BY created_at DESC
		LIMIT 1`
	if err := s.db.GetContext(ctx, &g, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) InsertWebhookLog(ctx context.Context, log models.WebhookLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_logs (id, user_id, kind, url, request_payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
		log.ID, log.UserID, log.Kind, log.URL, string(log.RequestPayload), log.Status, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook log: %w", err)
	}
	return nil
}

// CompleteWebhookLog moves a pending entry to its terminal status. Only a
// pending entry is updated, so each entry is closed at most once.
func (s *PostgresStore) CompleteWebhookLog(ctx context.Context, id string, status models.LogStatus, response []byte, statusCode *int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_logs SET status = $2, response_payload = $3::jsonb, response_status = $4
		WHERE id = $1 AND status = $5`,
		id, status, string(response), statusCode, models.LogStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to complete webhook log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLogNotPending
	}
	return nil
}

func (s *PostgresStore) ListWebhookLogs(ctx context.Context, userID string, limit int) ([]models.WebhookLog, error) {
	logs := []models.WebhookLog{}
	query := `SELECT id, user_id, kind, url, request_payload, response_payload, response_status, status, created_at
		FROM webhook_logs WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &logs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	return logs, nil
}
