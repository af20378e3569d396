package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/insights"
	"github.com/illegalcall/weight-insights/internal/models"
	"github.com/illegalcall/weight-insights/pkg/kafka"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

func (s *Server) handleInsights(c *fiber.Ctx) error {
	res, err := s.insights.Run(c.UserContext(), userID(c))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(models.InsightsResponse{
		Message:   res.Message,
		LogID:     res.LogID,
		Remaining: res.Remaining,
		HTML:      res.HTML,
	})
}

// handleQueueInsights hands the request to the worker. Callers with no
// quota left are turned away here rather than after a queue round trip.
func (s *Server) handleQueueInsights(c *fiber.Ctx) error {
	id := userID(c)
	if id == "" {
		return s.respondError(c, apperror.ErrAuthRequired)
	}

	decision, err := s.tracker.Status(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	if !decision.Allowed {
		profile, err := s.store.GetProfile(c.UserContext(), id)
		if err == nil && profile.IsSuspended {
			return s.respondError(c, apperror.ErrAccountSuspended)
		}
		return s.respondError(c, &apperror.QuotaExceededError{Count: decision.Count, Limit: decision.Limit})
	}

	req := models.InsightsRequest{
		RequestID:   uuid.NewString(),
		UserID:      id,
		RequestedAt: time.Now().UTC(),
	}
	status := models.InsightsRequestStatus{
		RequestID: req.RequestID,
		UserID:    id,
		Status:    models.RequestStatusQueued,
	}

	if err := s.statuses.Save(c.UserContext(), status); err != nil {
		s.logger.Error("Failed to store request status", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue insights request",
		})
	}

	if err := kafka.PublishInsightsRequest(s.producer, s.cfg.Kafka.Topic, req); err != nil {
		s.logger.Error("Failed to queue insights request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue insights request",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(status)
}

func (s *Server) handleGetInsightsRequest(c *fiber.Ctx) error {
	status, err := s.statuses.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, insights.ErrStatusNotFound) || (err == nil && status.UserID != userID(c)) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Request not found",
		})
	}
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(status)
}

func (s *Server) handleQuota(c *fiber.Ctx) error {
	id := userID(c)
	if id == "" {
		return s.respondError(c, apperror.ErrAuthRequired)
	}

	decision, err := s.tracker.Status(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(models.QuotaResponse{
		Limit:     decision.Limit,
		Used:      decision.Count,
		Remaining: decision.Remaining,
		Allowed:   decision.Allowed,
	})
}

func (s *Server) handleListWebhookLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit <= 0 || limit > maxLogLimit {
		limit = defaultLogLimit
	}

	logs, err := s.store.ListWebhookLogs(c.UserContext(), userID(c), limit)
	if err != nil {
		return s.respondError(c, err)
	}

	views := make([]models.WebhookLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, l.View())
	}
	return c.JSON(fiber.Map{"logs": views})
}
