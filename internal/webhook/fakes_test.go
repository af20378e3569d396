package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/models"
	"github.com/illegalcall/weight-insights/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConfigStore struct {
	mu        sync.Mutex
	cfg       *models.WebhookConfig
	overrides map[string]string
	getErr    error
	reads     int
}

func (f *fakeConfigStore) GetWebhookConfig(ctx context.Context) (models.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.getErr != nil {
		return models.WebhookConfig{}, f.getErr
	}
	if f.cfg == nil {
		return models.WebhookConfig{}, storage.ErrConfigNotFound
	}
	return *f.cfg, nil
}

func (f *fakeConfigStore) SaveWebhookConfig(ctx context.Context, cfg models.WebhookConfig) (models.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = &cfg
	return cfg, nil
}

func (f *fakeConfigStore) GetWebhookOverride(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.overrides[userID]
	if !ok {
		return "", apperror.ErrProfileNotFound
	}
	return url, nil
}

type fakeLogStore struct {
	mu        sync.Mutex
	entries   map[string]models.WebhookLog
	insertErr error
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{entries: make(map[string]models.WebhookLog)}
}

func (f *fakeLogStore) InsertWebhookLog(ctx context.Context, log models.WebhookLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries[log.ID] = log
	return nil
}

func (f *fakeLogStore) CompleteWebhookLog(ctx context.Context, id string, status models.LogStatus, response []byte, statusCode *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Postgres rejects U+0000 in jsonb.
	if hasNULEscape(response) || bytes.IndexByte(response, 0) >= 0 {
		return errors.New("unsupported Unicode escape sequence")
	}
	entry, ok := f.entries[id]
	if !ok || entry.Status != models.LogStatusPending {
		return storage.ErrLogNotPending
	}
	entry.Status = status
	entry.ResponsePayload = response
	entry.ResponseStatus = statusCode
	f.entries[id] = entry
	return nil
}
