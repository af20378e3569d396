package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/illegalcall/weight-insights/internal/apperror"
)

// Result is the normalized outcome of one POST. StatusCode is 0 when no
// response was received.
type Result struct {
	OK         bool
	StatusCode int
	Body       Body
	Err        error
	Duration   time.Duration
}

// Dispatcher sends JSON payloads to webhook destinations
type Dispatcher struct {
	client       *http.Client
	maxBodyBytes int64
	log          *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil client means http.DefaultClient;
// per-call deadlines come from Dispatch's timeout argument.
func NewDispatcher(client *http.Client, maxBodyBytes int64, log *slog.Logger) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{client: client, maxBodyBytes: maxBodyBytes, log: log}
}

// Dispatch POSTs payload to url and waits at most timeout. The deadline
// cancels the outbound request itself. Dispatch never returns an error;
// failures are reported in Result.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, payload []byte, timeout time.Duration) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return d.failure(start, fmt.Errorf("failed to create webhook request: %w", err), timeout)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return d.failure(start, err, timeout)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if d.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, d.maxBodyBytes)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return d.failure(start, err, timeout)
	}

	res := Result{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       ParseBody(data),
		Duration:   time.Since(start),
	}
	if !res.OK {
		res.Err = &apperror.UpstreamHTTPError{StatusCode: resp.StatusCode}
	}

	d.log.Info("Webhook responded",
		"url", url,
		"status", res.StatusCode,
		"json", res.Body.IsJSON(),
		"duration", res.Duration,
	)
	return res
}

func (d *Dispatcher) failure(start time.Time, err error, timeout time.Duration) Result {
	res := Result{Duration: time.Since(start)}
	if isTimeout(err) {
		res.Err = fmt.Errorf("%w: %w", apperror.ErrNetworkTimeout, err)
		res.Body = TextBody(fmt.Sprintf("request timed out after %s", timeout))
	} else {
		res.Err = fmt.Errorf("webhook request failed: %w", err)
		res.Body = TextBody(err.Error())
	}

	d.log.Warn("Webhook request failed", "error", err, "duration", res.Duration)
	return res
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
