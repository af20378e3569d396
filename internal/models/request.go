package models

import "time"

// LoginRequest represents the login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"password123"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	// JWT token for authentication
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType string `json:"type" example:"Bearer"`
}

// InsightsResponse is returned by a synchronous insights run.
type InsightsResponse struct {
	Message   string `json:"message"`
	LogID     string `json:"log_id,omitempty"`
	Remaining int    `json:"remaining"`
	HTML      bool   `json:"html"`
}

// InsightsRequest is the queued form of an insights run.
type InsightsRequest struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	RequestedAt time.Time `json:"requested_at"`
}

const (
	RequestStatusQueued    = "queued"
	RequestStatusCompleted = "completed"
	RequestStatusFailed    = "failed"
)

// InsightsRequestStatus is stored in Redis while a queued run is tracked.
type InsightsRequestStatus struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	LogID     string `json:"log_id,omitempty"`
}

// WebhookTestRequest triggers a connectivity test; an empty URL tests the
// current global destination.
type WebhookTestRequest struct {
	URL string `json:"url" validate:"omitempty,http_url"`
}

// QuotaResponse is the read-only view of a user's daily quota.
type QuotaResponse struct {
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Allowed   bool `json:"allowed"`
}
