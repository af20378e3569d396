package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/weight-insights/internal/config"
	"github.com/illegalcall/weight-insights/internal/insights"
	"github.com/illegalcall/weight-insights/internal/pkg/supabase"
	"github.com/illegalcall/weight-insights/internal/quota"
	"github.com/illegalcall/weight-insights/internal/storage"
	"github.com/illegalcall/weight-insights/internal/webhook"
)

// MockProducer simulates Kafka producer for testing
type MockProducer struct {
	sarama.SyncProducer
	messages []*sarama.ProducerMessage
}

func (m *MockProducer) SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	m.messages = append(m.messages, msg)
	return 0, 0, nil
}

func (m *MockProducer) Close() error {
	return nil
}

// fakeAuth accepts a single email/password pair.
type fakeAuth struct {
	err error
}

func (f fakeAuth) SignIn(email, password string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if email == "user@example.com" && password == "password123" {
		return "u1", nil
	}
	return "", supabase.ErrInvalidCredentials
}

const testSecret = "test-secret"

// setupTestServer initializes a test instance of the API server.
func setupTestServer(t *testing.T) (*Server, sqlmock.Sqlmock, *miniredis.Miniredis) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	miniRedis, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(miniRedis.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: miniRedis.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           ":8080",
			Environment:    "development",
			MaxRequests:    1000,
			RequestTimeout: time.Minute,
		},
		JWT: config.JWTConfig{
			Secret:     testSecret,
			Expiration: 24 * time.Hour,
		},
		Kafka: config.KafkaConfig{
			Topic: "test-topic",
		},
		Redis: config.RedisConfig{StatusTTL: time.Hour},
		Webhook: config.WebhookConfig{
			InsightsTimeout: 5 * time.Second,
			TestTimeout:     5 * time.Second,
			SummaryLimit:    1000,
			MaxBodyBytes:    1 << 20,
		},
		RateLimit: config.RateLimitConfig{TestMaxRequests: 5, TestWindow: time.Hour},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewPostgresStore(sqlx.NewDb(mockDB, "sqlmock"))
	resolver := webhook.NewResolver(store, webhook.NewConfigCache(time.Minute), webhook.NewRedisConfigVersion(redisClient), "http://fallback.example/hook", log)
	tracker := quota.NewTracker(store, log)

	service := insights.NewService(insights.Deps{
		Tracker:    tracker,
		Limiter:    quota.NewRateLimiter(redisClient),
		Builder:    insights.NewBuilder(store, resolver),
		Resolver:   resolver,
		Dispatcher: webhook.NewDispatcher(nil, cfg.Webhook.MaxBodyBytes, log),
		Audit:      webhook.NewAuditLogger(store, cfg.Webhook.SummaryLimit, log),
	}, cfg.Webhook, cfg.RateLimit, log)

	server := NewServer(cfg, &MockProducer{}, Deps{
		Store:    store,
		Auth:     fakeAuth{},
		Insights: service,
		Tracker:  tracker,
		Resolver: resolver,
		Statuses: insights.NewStatusStore(redisClient, cfg.Redis.StatusTTL),
	}, log)

	return server, mock, miniRedis
}

func tokenFor(t *testing.T, userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newRequest(t *testing.T, method, path, userID string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

var profileCols = []string{
	"id", "display_name", "email", "preferred_unit", "timezone", "is_admin", "is_suspended",
	"webhook_url", "webhook_limit", "webhook_count", "last_webhook_date", "created_at",
}

type profileRow struct {
	id        string
	admin     bool
	suspended bool
	limit     int
	count     int
	last      any
}

func (p profileRow) rows() *sqlmock.Rows {
	return sqlmock.NewRows(profileCols).
		AddRow(p.id, "Test User", p.id+"@example.com", "kg", "UTC", p.admin, p.suspended, nil, p.limit, p.count, p.last, time.Now())
}

var configCols = []string{
	"url", "lookback_days", "include_user_data", "include_weight_data", "include_goal_data",
	"include_activity_data", "include_detailed_analysis", "default_daily_limit", "updated_at",
}

func configRows(url string) *sqlmock.Rows {
	return sqlmock.NewRows(configCols).AddRow(url, 30, true, true, true, false, false, 10, time.Now())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server, _, _ := setupTestServer(t)

	for _, path := range []string{"/api/insights/quota", "/api/webhook/logs", "/api/admin/webhook-config"} {
		resp, err := server.app.Test(newRequest(t, "GET", path, "", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)

		var result map[string]any
		decode(t, resp, &result)
		assert.Equal(t, "Please sign in to request insights.", result["error"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	resp, err := server.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
