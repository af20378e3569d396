package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/config"
	"github.com/illegalcall/weight-insights/internal/metrics"
	"github.com/illegalcall/weight-insights/internal/models"
	"github.com/illegalcall/weight-insights/internal/quota"
	"github.com/illegalcall/weight-insights/internal/webhook"
)

// Result is what a successful insights run hands back to the caller.
type Result struct {
	Message   string
	LogID     string
	Remaining int
	HTML      bool
}

// TestResult is the outcome of an admin connectivity test. A failed
// destination is a normal result, not an error.
type TestResult struct {
	OK         bool            `json:"success"`
	URL        string          `json:"url"`
	StatusCode int             `json:"status,omitempty"`
	Response   json.RawMessage `json:"response"`
	HTML       bool            `json:"html"`
	LogID      string          `json:"log_id,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Service runs the insights flow:
// quota check, payload build, URL resolution, log open, dispatch, log close.
type Service struct {
	tracker    *quota.Tracker
	limiter    *quota.RateLimiter
	builder    *Builder
	resolver   *webhook.Resolver
	dispatcher *webhook.Dispatcher
	audit      *webhook.AuditLogger
	webhookCfg config.WebhookConfig
	rateCfg    config.RateLimitConfig
	log        *slog.Logger
	now        func() time.Time
}

type Deps struct {
	Tracker    *quota.Tracker
	Limiter    *quota.RateLimiter
	Builder    *Builder
	Resolver   *webhook.Resolver
	Dispatcher *webhook.Dispatcher
	Audit      *webhook.AuditLogger
}

func NewService(deps Deps, webhookCfg config.WebhookConfig, rateCfg config.RateLimitConfig, log *slog.Logger) *Service {
	return &Service{
		tracker:    deps.Tracker,
		limiter:    deps.Limiter,
		builder:    deps.Builder,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		webhookCfg: webhookCfg,
		rateCfg:    rateCfg,
		log:        log,
		now:        time.Now,
	}
}

// Run performs one insights request for userID.
//
// Auth, suspension and quota rejections return before anything is logged or
// sent. Failures before the dispatch attempt give the quota slot back. Once
// a log entry is open it is always closed, even if the caller's context is
// cancelled mid-request.
func (s *Service) Run(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, apperror.ErrAuthRequired
	}

	decision, err := s.tracker.CheckAndConsume(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if !decision.Allowed {
		return Result{Remaining: 0}, &apperror.QuotaExceededError{Count: decision.Count, Limit: decision.Limit}
	}

	payload, err := s.builder.Build(ctx, userID)
	if err != nil {
		return s.abort(ctx, userID, decision, err)
	}

	url, err := s.resolver.ResolveURL(ctx, userID)
	if err != nil {
		return s.abort(ctx, userID, decision, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return s.abort(ctx, userID, decision, fmt.Errorf("failed to encode payload: %w", err))
	}

	res, logID := s.send(ctx, models.LogKindInsights, userID, url, body, s.webhookCfg.InsightsTimeout)

	result := Result{LogID: logID, Remaining: decision.Remaining}
	if !res.OK {
		s.log.Error("Insights request failed",
			"user_id", userID,
			"url", url,
			"status", res.StatusCode,
			"log_id", logID,
			"error", res.Err,
		)
		return result, fmt.Errorf("%w: %w", apperror.ErrInsightsFailed, res.Err)
	}

	result.Message = s.message(res.Body)
	result.HTML = res.Body.IsHTML()
	s.log.Info("Insights delivered",
		"user_id", userID,
		"entries", payload.Entries.Len(),
		"remaining", result.Remaining,
		"log_id", logID,
	)
	return result, nil
}

// TestWebhook posts a small probe to url, or to the global destination when
// url is empty. It is limited per admin and never touches the daily quota.
func (s *Service) TestWebhook(ctx context.Context, adminID, url string) (TestResult, error) {
	allowed, err := s.limiter.Allow(ctx, adminID, quota.OperationWebhookTest, s.rateCfg.TestMaxRequests, s.rateCfg.TestWindow)
	if err != nil {
		return TestResult{}, err
	}
	if !allowed {
		return TestResult{}, apperror.ErrRateLimited
	}

	if url == "" {
		if url, err = s.resolver.ResolveURL(ctx, ""); err != nil {
			return TestResult{}, err
		}
	}

	body, err := json.Marshal(map[string]any{
		"test":      true,
		"message":   "Webhook connectivity test",
		"user_id":   adminID,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return TestResult{}, fmt.Errorf("failed to encode test payload: %w", err)
	}

	res, logID := s.send(ctx, models.LogKindTest, adminID, url, body, s.webhookCfg.TestTimeout)

	response, err := res.Body.MarshalJSON()
	if err != nil {
		return TestResult{}, fmt.Errorf("failed to encode test response: %w", err)
	}
	return TestResult{
		OK:         res.OK,
		URL:        url,
		StatusCode: res.StatusCode,
		Response:   response,
		HTML:       res.Body.IsHTML(),
		LogID:      logID,
		DurationMS: res.Duration.Milliseconds(),
	}, nil
}

// send opens a log entry, dispatches and closes the entry. A failed open is
// only a warning; the request still goes out without a log id.
func (s *Service) send(ctx context.Context, kind models.LogKind, userID, url string, body []byte, timeout time.Duration) (webhook.Result, string) {
	// The attempt outlives a disconnecting caller so its log entry is closed.
	ctx = context.WithoutCancel(ctx)

	logID, err := s.audit.Open(ctx, kind, userID, url, body)
	if err != nil {
		s.log.Warn("Failed to open webhook log, dispatching anyway", "user_id", userID, "error", err)
	}

	res := s.dispatcher.Dispatch(ctx, url, body, timeout)

	if logID != "" {
		if err := s.audit.Close(ctx, logID, res); err != nil {
			s.log.Warn("Failed to close webhook log", "log_id", logID, "error", err)
		}
	}

	outcome := "success"
	if !res.OK {
		outcome = "error"
		if errors.Is(res.Err, apperror.ErrNetworkTimeout) {
			outcome = "timeout"
		}
	}
	metrics.DispatchTotal.WithLabelValues(string(kind), outcome).Inc()
	metrics.DispatchDuration.WithLabelValues(string(kind)).Observe(res.Duration.Seconds())

	return res, logID
}

// abort gives back the quota slot for a run that never reached the network.
func (s *Service) abort(ctx context.Context, userID string, decision quota.Decision, cause error) (Result, error) {
	if err := s.tracker.Refund(context.WithoutCancel(ctx), userID); err != nil {
		s.log.Warn("Failed to refund quota", "user_id", userID, "error", err)
	}
	s.log.Error("Insights request aborted before dispatch", "user_id", userID, "error", cause)
	return Result{Remaining: decision.Remaining + 1}, fmt.Errorf("%w: %w", apperror.ErrInsightsFailed, cause)
}

var messageFields = []string{"message", "output", "insights", "text"}

// message extracts the insight text from a destination's answer. Workflow
// tools often wrap it in an object or a one-element array; anything else is
// returned as the truncated raw body.
func (s *Service) message(b webhook.Body) string {
	if b.IsJSON() {
		doc := gjson.ParseBytes(b.JSON())
		if doc.IsArray() {
			doc = doc.Get("0")
		}
		for _, field := range messageFields {
			if v := doc.Get(field); v.Type == gjson.String && v.Str != "" {
				return webhook.Truncate(v.Str, s.webhookCfg.SummaryLimit)
			}
		}
	}
	return s.audit.Summary(b)
}
