package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/models"
)

// handleCreateProfile creates the caller's profile after registration. The
// daily insights limit starts at the configured default.
func (s *Server) handleCreateProfile(c *fiber.Ctx) error {
	id := userID(c)
	if id == "" {
		return s.respondError(c, apperror.ErrAuthRequired)
	}

	var req models.NewProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return s.validationFailed(c, err)
	}

	s.logger.Info("Creating profile for user", "user_id", id)

	unit := req.PreferredUnit
	if unit == "" {
		unit = models.UnitKg
	}
	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	profile := models.Profile{
		ID:            id,
		DisplayName:   req.DisplayName,
		Email:         req.Email,
		PreferredUnit: unit,
		Timezone:      timezone,
		WebhookLimit:  s.resolver.Config(c.UserContext()).DefaultDailyLimit,
		CreatedAt:     time.Now(),
	}

	stored, created, err := s.store.CreateProfile(c.UserContext(), profile)
	if err != nil {
		s.logger.Error("Failed to create profile", "error", err, "user_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create profile",
		})
	}

	if !created {
		s.logger.Info("Profile already exists for user", "user_id", id)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Profile already exists for this user",
		})
	}

	s.logger.Info("Profile created successfully", "user_id", id, "webhook_limit", stored.WebhookLimit)

	return c.Status(fiber.StatusCreated).JSON(models.NewProfileResponse{
		Profile: stored,
		Success: true,
	})
}
