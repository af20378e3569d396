package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/models"
	"github.com/illegalcall/weight-insights/internal/pkg/supabase"
)

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return s.badRequest(c, "Email and password are required")
	}

	s.logger.Info("Authentication attempt", "email", req.Email)

	userID, err := s.auth.SignIn(req.Email, req.Password)
	if errors.Is(err, supabase.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}
	if err != nil {
		s.logger.Error("Authentication error", "error", err)

		errorMessage := "Authentication service error"
		if s.cfg.Server.Environment != "production" {
			errorMessage = fmt.Sprintf("Authentication error: %v", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": errorMessage,
		})
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": req.Email,
		"exp":   now.Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	s.logger.Info("User successfully authenticated", "user_id", userID)

	return c.JSON(models.LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
	})
}

// userID returns the subject of the request's verified token, "" if none.
func userID(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwtv4.Token)
	if !ok || token == nil {
		return ""
	}
	claims, ok := token.Claims.(jwtv4.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// requireAdmin lets the request through only for profiles flagged is_admin.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	id := userID(c)
	if id == "" {
		return s.respondError(c, apperror.ErrAuthRequired)
	}

	profile, err := s.store.GetProfile(c.UserContext(), id)
	if errors.Is(err, apperror.ErrProfileNotFound) {
		return s.respondError(c, apperror.ErrForbidden)
	}
	if err != nil {
		return s.respondError(c, err)
	}
	if !profile.IsAdmin {
		return s.respondError(c, apperror.ErrForbidden)
	}
	return c.Next()
}
