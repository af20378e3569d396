package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/config"
	"github.com/illegalcall/weight-insights/internal/insights"
	"github.com/illegalcall/weight-insights/internal/quota"
	"github.com/illegalcall/weight-insights/internal/storage"
	"github.com/illegalcall/weight-insights/internal/webhook"
)

// Authenticator checks user credentials and returns the user id.
type Authenticator interface {
	SignIn(email, password string) (string, error)
}

// Deps are the components the handlers call into.
type Deps struct {
	Store    *storage.PostgresStore
	Auth     Authenticator
	Insights *insights.Service
	Tracker  *quota.Tracker
	Resolver *webhook.Resolver
	Statuses *insights.StatusStore
}

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	producer sarama.SyncProducer
	store    *storage.PostgresStore
	auth     Authenticator
	insights *insights.Service
	tracker  *quota.Tracker
	resolver *webhook.Resolver
	statuses *insights.StatusStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, producer sarama.SyncProducer, deps Deps, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		producer: producer,
		store:    deps.Store,
		auth:     deps.Auth,
		insights: deps.Insights,
		tracker:  deps.Tracker,
		resolver: deps.Resolver,
		statuses: deps.Statuses,
		validate: validator.New(),
		logger:   log,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return s.respondError(c, apperror.ErrAuthRequired)
		},
	}))
	protected.Post("/profile", s.handleCreateProfile)
	protected.Post("/insights", s.handleInsights)
	protected.Post("/insights/queue", s.handleQueueInsights)
	protected.Get("/insights/requests/:id", s.handleGetInsightsRequest)
	protected.Get("/insights/quota", s.handleQuota)
	protected.Get("/webhook/logs", s.handleListWebhookLogs)

	admin := api.Group("/admin", s.requireAdmin)
	admin.Get("/webhook-config", s.handleGetWebhookConfig)
	admin.Put("/webhook-config", s.handleUpdateWebhookConfig)
	admin.Put("/users/:id/webhook", s.handleUpdateUserWebhook)
	admin.Post("/webhook/test", s.handleTestWebhook)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// respondError writes the status and caller-facing message for err.
// Server-side failures are logged with their full detail.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "error", err)
	}

	body := fiber.Map{"error": apperror.UserMessage(err)}
	var quotaErr *apperror.QuotaExceededError
	if errors.As(err, &quotaErr) {
		body["limit"] = quotaErr.Limit
		body["remaining"] = 0
	}
	return c.Status(status).JSON(body)
}

func (s *Server) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

// validationFailed reports validator errors field by field.
func (s *Server) validationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":  "Validation failed",
		"fields": apperror.ValidationErrors(err),
	})
}
