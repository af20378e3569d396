package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/illegalcall/weight-insights/internal/models"
)

// LogStore persists webhook log entries.
type LogStore interface {
	InsertWebhookLog(ctx context.Context, log models.WebhookLog) error
	CompleteWebhookLog(ctx context.Context, id string, status models.LogStatus, response []byte, statusCode *int) error
}

// AuditLogger records every dispatch attempt: Open before the request goes
// out, Close once with the outcome.
type AuditLogger struct {
	store        LogStore
	summaryLimit int
	log          *slog.Logger
	now          func() time.Time
}

func NewAuditLogger(store LogStore, summaryLimit int, log *slog.Logger) *AuditLogger {
	return &AuditLogger{store: store, summaryLimit: summaryLimit, log: log, now: time.Now}
}

// Open inserts a pending entry and returns its id.
func (a *AuditLogger) Open(ctx context.Context, kind models.LogKind, userID, url string, payload []byte) (string, error) {
	entry := models.WebhookLog{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           kind,
		URL:            url,
		RequestPayload: payload,
		Status:         models.LogStatusPending,
		CreatedAt:      a.now().UTC(),
	}
	if err := a.store.InsertWebhookLog(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to open webhook log: %w", err)
	}
	return entry.ID, nil
}

// Close stores the full response body and the terminal status.
func (a *AuditLogger) Close(ctx context.Context, id string, res Result) error {
	status := models.LogStatusSuccess
	if !res.OK {
		status = models.LogStatusError
	}

	response, err := res.Body.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode webhook response: %w", err)
	}

	var code *int
	if res.StatusCode > 0 {
		c := res.StatusCode
		code = &c
	}

	if err := a.store.CompleteWebhookLog(ctx, id, status, response, code); err != nil {
		return fmt.Errorf("failed to close webhook log %s: %w", id, err)
	}
	return nil
}

// Summary is the caller-facing, length-bounded form of a response body.
func (a *AuditLogger) Summary(b Body) string {
	return Truncate(b.String(), a.summaryLimit)
}
