package insights

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/models"
	"github.com/illegalcall/weight-insights/internal/storage"
)

// memStore backs every store interface of the insights flow in memory.
type memStore struct {
	mu        sync.Mutex
	config    *models.WebhookConfig
	profiles  map[string]*models.Profile
	entries   map[string][]models.WeightEntry
	goals     map[string]*models.Goal
	logs      map[string]*models.WebhookLog
	logOrder  []string
	insertErr error
	entryErr  error
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]*models.Profile),
		entries:  make(map[string][]models.WeightEntry),
		goals:    make(map[string]*models.Goal),
		logs:     make(map[string]*models.WebhookLog),
	}
}

func (m *memStore) addProfile(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = &p
}

func (m *memStore) profile(id string) models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.profiles[id]
}

func (m *memStore) GetWebhookConfig(ctx context.Context) (models.WebhookConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return models.WebhookConfig{}, storage.ErrConfigNotFound
	}
	return *m.config, nil
}

func (m *memStore) SaveWebhookConfig(ctx context.Context, cfg models.WebhookConfig) (models.WebhookConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return cfg, nil
}

func (m *memStore) GetWebhookOverride(ctx context.Context, userID string) (string, error) {
	p, err := m.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if p.WebhookURL == nil {
		return "", nil
	}
	return *p.WebhookURL, nil
}

func (m *memStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.Profile{}, apperror.ErrProfileNotFound
	}
	return *p, nil
}

func (m *memStore) ConsumeQuota(ctx context.Context, userID string, dayStart, now time.Time) (int, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok || p.IsSuspended || p.WebhookLimit <= 0 {
		return 0, 0, false, nil
	}
	newDay := p.LastWebhook == nil || p.LastWebhook.Before(dayStart)
	if !newDay && p.WebhookCount >= p.WebhookLimit {
		return 0, 0, false, nil
	}
	if newDay {
		p.WebhookCount = 1
	} else {
		p.WebhookCount++
	}
	p.LastWebhook = &now
	return p.WebhookCount, p.WebhookLimit, true, nil
}

func (m *memStore) RefundQuota(ctx context.Context, userID string, dayStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok && p.WebhookCount > 0 {
		p.WebhookCount--
	}
	return nil
}

func (m *memStore) ListWeightEntries(ctx context.Context, userID string, since time.Time) ([]models.WeightEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entryErr != nil {
		return nil, m.entryErr
	}
	out := []models.WeightEntry{}
	for _, e := range m.entries[userID] {
		if !e.Date.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) LatestOpenGoal(ctx context.Context, userID string) (*models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goals[userID], nil
}

func (m *memStore) InsertWebhookLog(ctx context.Context, log models.WebhookLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.logs[log.ID] = &log
	m.logOrder = append(m.logOrder, log.ID)
	return nil
}

func (m *memStore) CompleteWebhookLog(ctx context.Context, id string, status models.LogStatus, response []byte, statusCode *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok || l.Status != models.LogStatusPending {
		return storage.ErrLogNotPending
	}
	l.Status = status
	l.ResponsePayload = response
	l.ResponseStatus = statusCode
	return nil
}

func (m *memStore) allLogs() []models.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WebhookLog, 0, len(m.logOrder))
	for _, id := range m.logOrder {
		out = append(out, *m.logs[id])
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }
