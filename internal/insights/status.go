package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/weight-insights/internal/models"
)

var ErrStatusNotFound = errors.New("insights request not found")

// StatusStore tracks queued insights requests in Redis until they expire.
type StatusStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStatusStore(client redis.Cmdable, ttl time.Duration) *StatusStore {
	return &StatusStore{client: client, ttl: ttl}
}

func statusKey(requestID string) string {
	return fmt.Sprintf("insights:request:%s", requestID)
}

func (s *StatusStore) Save(ctx context.Context, status models.InsightsRequestStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode request status: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(status.RequestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store request status: %w", err)
	}
	return nil
}

func (s *StatusStore) Get(ctx context.Context, requestID string) (models.InsightsRequestStatus, error) {
	var status models.InsightsRequestStatus
	data, err := s.client.Get(ctx, statusKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return status, ErrStatusNotFound
	}
	if err != nil {
		return status, fmt.Errorf("failed to read request status: %w", err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("failed to decode request status: %w", err)
	}
	return status, nil
}
