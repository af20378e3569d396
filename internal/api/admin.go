package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/weight-insights/internal/models"
)

func (s *Server) handleGetWebhookConfig(c *fiber.Ctx) error {
	return c.JSON(s.resolver.Config(c.UserContext()))
}

// handleUpdateWebhookConfig saves the global config. The local cache is
// cleared and the shared config version bumped before the response, so the
// next request resolves the new URL here and in the worker.
func (s *Server) handleUpdateWebhookConfig(c *fiber.Ctx) error {
	var cfg models.WebhookConfig
	if err := c.BodyParser(&cfg); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(cfg); err != nil {
		return s.validationFailed(c, err)
	}

	saved, err := s.resolver.UpdateConfig(c.UserContext(), cfg)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(saved)
}

func (s *Server) handleUpdateUserWebhook(c *fiber.Ctx) error {
	var settings models.ProfileWebhookSettings
	if err := c.BodyParser(&settings); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if settings.WebhookURL != nil && strings.TrimSpace(*settings.WebhookURL) == "" {
		settings.WebhookURL = nil
	}
	if err := s.validate.Struct(settings); err != nil {
		return s.validationFailed(c, err)
	}

	id := c.Params("id")
	if err := s.store.UpdateWebhookSettings(c.UserContext(), id, settings); err != nil {
		return s.respondError(c, err)
	}

	s.logger.Info("User webhook settings updated",
		"admin_id", userID(c),
		"user_id", id,
		"override", settings.WebhookURL != nil,
		"limit", settings.WebhookLimit,
		"suspended", settings.IsSuspended,
	)
	return c.JSON(fiber.Map{"user_id": id, "settings": settings})
}

func (s *Server) handleTestWebhook(c *fiber.Ctx) error {
	var req models.WebhookTestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, "Invalid request body")
		}
	}
	if err := s.validate.Struct(req); err != nil {
		return s.validationFailed(c, err)
	}

	res, err := s.insights.TestWebhook(c.UserContext(), userID(c), req.URL)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}
