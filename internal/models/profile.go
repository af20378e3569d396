package models

import (
	"time"
)

// Profile is a user's row in the profiles table. ID matches auth.users.id.
type Profile struct {
	ID            string     `json:"id" db:"id"`
	DisplayName   string     `json:"display_name" db:"display_name"`
	Email         string     `json:"email" db:"email"`
	PreferredUnit Unit       `json:"preferred_unit" db:"preferred_unit"`
	Timezone      string     `json:"timezone" db:"timezone"`
	IsAdmin       bool       `json:"is_admin" db:"is_admin"`
	IsSuspended   bool       `json:"is_suspended" db:"is_suspended"`
	WebhookURL    *string    `json:"webhook_url" db:"webhook_url"`     // per-user override, nil for global
	WebhookLimit  int        `json:"webhook_limit" db:"webhook_limit"` // requests allowed per UTC day
	WebhookCount  int        `json:"webhook_count" db:"webhook_count"` // requests used on LastWebhookDate's day
	LastWebhook   *time.Time `json:"last_webhook_date" db:"last_webhook_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// NewProfileRequest is the request structure for creating a new profile
type NewProfileRequest struct {
	DisplayName   string `json:"display_name"`
	Email         string `json:"email" validate:"omitempty,email"`
	PreferredUnit Unit   `json:"preferred_unit" validate:"omitempty,oneof=kg lbs"`
	Timezone      string `json:"timezone"`
}

// NewProfileResponse is the response structure when a profile is created
type NewProfileResponse struct {
	Profile Profile `json:"profile"`
	Success bool    `json:"success"`
}

// ProfileWebhookSettings is the admin-editable part of a profile.
type ProfileWebhookSettings struct {
	WebhookURL   *string `json:"webhook_url" validate:"omitempty,http_url"`
	WebhookLimit int     `json:"webhook_limit" validate:"gte=0,lte=1000"`
	IsSuspended  bool    `json:"is_suspended"`
}
