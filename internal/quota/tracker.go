// Package quota enforces the per-user daily insights budget and the
// per-operation rate limits.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/metrics"
	"github.com/illegalcall/weight-insights/internal/models"
)

// Store is the profile persistence the tracker needs. ConsumeQuota must be
// a single atomic increment-with-ceiling.
type Store interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	ConsumeQuota(ctx context.Context, userID string, dayStart, now time.Time) (count, limit int, ok bool, err error)
	RefundQuota(ctx context.Context, userID string, dayStart time.Time) error
}

// Decision describes a user's daily budget at one point in time.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
}

type Tracker struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewTracker(store Store, log *slog.Logger) *Tracker {
	return &Tracker{store: store, log: log, now: time.Now}
}

// DayStart is midnight UTC of t's calendar day. All quota days are UTC days.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IsNewDay reports whether last falls on an earlier UTC calendar day than
// now. A nil last is always a new day.
func IsNewDay(last *time.Time, now time.Time) bool {
	return last == nil || last.Before(DayStart(now))
}

// Evaluate applies the daily reset rule to a stored profile without writing.
func Evaluate(p models.Profile, now time.Time) Decision {
	count := p.WebhookCount
	if IsNewDay(p.LastWebhook, now) {
		count = 0
	}
	d := Decision{Count: count, Limit: p.WebhookLimit}
	d.Allowed = !p.IsSuspended && count < p.WebhookLimit
	if d.Allowed {
		d.Remaining = p.WebhookLimit - count
	}
	return d
}

// Status is the read-only view of a user's quota.
func (t *Tracker) Status(ctx context.Context, userID string) (Decision, error) {
	p, err := t.store.GetProfile(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(p, t.now()), nil
}

// CheckAndConsume takes one request from today's budget if one is left.
// Concurrent callers for the same user can never jointly exceed the limit
// because the check and the increment are one storage operation. Suspended
// users are rejected with ErrAccountSuspended regardless of quota.
func (t *Tracker) CheckAndConsume(ctx context.Context, userID string) (Decision, error) {
	now := t.now()
	count, limit, ok, err := t.store.ConsumeQuota(ctx, userID, DayStart(now), now)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: true, Count: count, Limit: limit, Remaining: remaining}, nil
	}

	// Nothing was written; find out why.
	p, err := t.store.GetProfile(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if p.IsSuspended {
		metrics.QuotaRejections.WithLabelValues("suspended").Inc()
		return Decision{}, apperror.ErrAccountSuspended
	}

	d := Evaluate(p, now)
	metrics.QuotaRejections.WithLabelValues("exhausted").Inc()
	t.log.Info("Daily insights quota exhausted", "user_id", userID, "count", d.Count, "limit", d.Limit)
	return Decision{Allowed: false, Count: d.Count, Limit: d.Limit, Remaining: 0}, nil
}

// Refund returns a request taken by CheckAndConsume when the flow failed
// before any dispatch attempt.
func (t *Tracker) Refund(ctx context.Context, userID string) error {
	if err := t.store.RefundQuota(ctx, userID, DayStart(t.now())); err != nil {
		return fmt.Errorf("failed to refund quota for %s: %w", userID, err)
	}
	return nil
}
