package models

import (
	"encoding/json"
	"time"
)

// WebhookConfigID is the primary key of the single webhook_config row.
const WebhookConfigID = 1

// WebhookConfig is the global, admin-editable dispatch configuration.
type WebhookConfig struct {
	URL                     string    `json:"url" db:"url" validate:"required,http_url"`
	LookbackDays            int       `json:"lookback_days" db:"lookback_days" validate:"gte=1,lte=365"`
	IncludeUserData         bool      `json:"include_user_data" db:"include_user_data"`
	IncludeWeightData       bool      `json:"include_weight_data" db:"include_weight_data"`
	IncludeGoalData         bool      `json:"include_goal_data" db:"include_goal_data"`
	IncludeActivityData     bool      `json:"include_activity_data" db:"include_activity_data"`
	IncludeDetailedAnalysis bool      `json:"include_detailed_analysis" db:"include_detailed_analysis"`
	DefaultDailyLimit       int       `json:"default_daily_limit" db:"default_daily_limit" validate:"gte=1,lte=1000"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultWebhookConfig is used until an administrator saves a configuration.
func DefaultWebhookConfig(url string) WebhookConfig {
	return WebhookConfig{
		URL:               url,
		LookbackDays:      30,
		IncludeUserData:   true,
		IncludeWeightData: true,
		IncludeGoalData:   true,
		DefaultDailyLimit: 10,
	}
}

type LogStatus string

const (
	LogStatusPending LogStatus = "pending"
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

type LogKind string

const (
	LogKindInsights LogKind = "insights"
	LogKindTest     LogKind = "test"
)

// WebhookLog is one dispatch attempt. Payloads are stored as jsonb.
type WebhookLog struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	Kind            LogKind   `json:"kind" db:"kind"`
	URL             string    `json:"url" db:"url"`
	RequestPayload  []byte    `json:"-" db:"request_payload"`
	ResponsePayload []byte    `json:"-" db:"response_payload"`
	ResponseStatus  *int      `json:"response_status" db:"response_status"`
	Status          LogStatus `json:"status" db:"status"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// WebhookLogView renders the stored payloads as embedded JSON.
type WebhookLogView struct {
	WebhookLog
	Request  json.RawMessage `json:"request_payload"`
	Response json.RawMessage `json:"response_payload"`
}

func (l WebhookLog) View() WebhookLogView {
	v := WebhookLogView{WebhookLog: l, Request: json.RawMessage("null"), Response: json.RawMessage("null")}
	if len(l.RequestPayload) > 0 {
		v.Request = l.RequestPayload
	}
	if len(l.ResponsePayload) > 0 {
		v.Response = l.ResponsePayload
	}
	return v
}
