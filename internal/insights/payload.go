// Package insights builds insights payloads and runs the request flow from
// quota check to logged dispatch.
package insights

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/illegalcall/weight-insights/internal/models"
)

const lbsPerKg = 2.20462

// DataStore is the read side the payload builder needs.
type DataStore interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	ListWeightEntries(ctx context.Context, userID string, since time.Time) ([]models.WeightEntry, error)
	LatestOpenGoal(ctx context.Context, userID string) (*models.Goal, error)
}

// ConfigSource serves the current global webhook config.
type ConfigSource interface {
	Config(ctx context.Context) models.WebhookConfig
}

// Payload is the document POSTed to the insights webhook.
type Payload struct {
	AccountID  string   `json:"account_id"`
	UserID     string   `json:"user_id"`
	Email      string   `json:"email"`
	Unit       string   `json:"unit"`
	GoalWeight *float64 `json:"goal_weight"`
	GoalDays   int      `json:"goal_days"`
	Entries    Entries  `json:"entries"`
}

// Entries holds parallel arrays, one element per weight entry.
type Entries struct {
	Weight []float64 `json:"weight"`
	Notes  []string  `json:"notes"`
	Dates  []string  `json:"dates"`
}

func (e Entries) Len() int { return len(e.Weight) }

type Builder struct {
	store  DataStore
	config ConfigSource
	now    func() time.Time
}

func NewBuilder(store DataStore, config ConfigSource) *Builder {
	return &Builder{store: store, config: config, now: time.Now}
}

// Build collects the user's profile, open goal and recent weight entries.
// Only a missing profile or a storage failure is an error; no goal and no
// entries produce a valid payload.
func (b *Builder) Build(ctx context.Context, userID string) (Payload, error) {
	cfg := b.config.Config(ctx)
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = models.DefaultWebhookConfig("").LookbackDays
	}

	profile, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to fetch profile: %w", err)
	}

	unit := profile.PreferredUnit
	if unit != models.UnitLbs {
		unit = models.UnitKg
	}

	p := Payload{
		AccountID: profile.ID,
		UserID:    profile.ID,
		Unit:      string(unit),
		GoalDays:  lookback,
		Entries:   Entries{Weight: []float64{}, Notes: []string{}, Dates: []string{}},
	}
	if cfg.IncludeUserData {
		p.Email = profile.Email
	}

	today := dateOf(b.now())

	if cfg.IncludeGoalData {
		goal, err := b.store.LatestOpenGoal(ctx, userID)
		if err != nil {
			return Payload{}, fmt.Errorf("failed to fetch goal: %w", err)
		}
		if goal != nil {
			w := convert(goal.TargetWeight, goal.Unit, unit)
			p.GoalWeight = &w
			if goal.TargetDate != nil {
				p.GoalDays = GoalDays(today, *goal.TargetDate)
			}
		}
	}

	if cfg.IncludeWeightData {
		since := today.AddDate(0, 0, -lookback)
		entries, err := b.store.ListWeightEntries(ctx, userID, since)
		if err != nil {
			return Payload{}, fmt.Errorf("failed to fetch weight entries: %w", err)
		}
		for _, e := range entries {
			note := ""
			if e.Note != nil {
				note = *e.Note
			}
			p.Entries.Weight = append(p.Entries.Weight, convert(e.Weight, e.Unit, unit))
			p.Entries.Notes = append(p.Entries.Notes, note)
			p.Entries.Dates = append(p.Entries.Dates, e.Date.Format(time.DateOnly))
		}
	}

	return p, nil
}

// GoalDays counts whole days from today until target, 0 once target has passed.
func GoalDays(today, target time.Time) int {
	days := int(dateOf(target).Sub(dateOf(today)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// convert changes w from one unit to another, rounded to two decimals.
func convert(w float64, from, to models.Unit) float64 {
	switch {
	case from == models.UnitKg && to == models.UnitLbs:
		w *= lbsPerKg
	case from == models.UnitLbs && to == models.UnitKg:
		w /= lbsPerKg
	}
	return math.Round(w*100) / 100
}
