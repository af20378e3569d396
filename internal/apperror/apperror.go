// Package apperror defines the error taxonomy of the insights subsystem and
// maps it onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var (
	ErrAuthRequired         = errors.New("authentication required")
	ErrForbidden            = errors.New("administrator access required")
	ErrAccountSuspended     = errors.New("account suspended")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrConfigurationMissing = errors.New("no webhook url configured")
	ErrNetworkTimeout       = errors.New("webhook request timed out")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrInsightsFailed       = errors.New("insights request failed")
)

// QuotaExceededError is returned when the daily insights budget is spent.
type QuotaExceededError struct {
	Count int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded: %d of %d requests used", e.Count, e.Limit)
}

// UpstreamHTTPError is a non-2xx answer from the webhook destination.
type UpstreamHTTPError struct {
	StatusCode int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	var quotaErr *QuotaExceededError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAccountSuspended):
		return http.StatusForbidden
	case errors.Is(err, ErrProfileNotFound):
		return http.StatusNotFound
	case errors.As(err, &quotaErr), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInsightsFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the caller-facing text for err. Transport details
// stay in server logs.
func UserMessage(err error) string {
	var quotaErr *QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		return fmt.Sprintf("You have used all %d of your daily insights requests. Your quota resets at midnight UTC.", quotaErr.Limit)
	case errors.Is(err, ErrAccountSuspended):
		return "Your account has been suspended. Please contact support."
	case errors.Is(err, ErrAuthRequired):
		return "Please sign in to request insights."
	case errors.Is(err, ErrForbidden):
		return "Administrator access is required."
	case errors.Is(err, ErrProfileNotFound):
		return "Your profile could not be found. Please complete your profile first."
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please wait before trying again."
	default:
		return "Unable to get insights right now. Please try again later."
	}
}

var validationMessages = map[string]string{
	"required": "is required",
	"url":      "must be a valid URL",
	"http_url": "must be a valid http(s) URL",
	"gte":      "is below the minimum",
	"lte":      "is above the maximum",
	"min":      "is too small",
	"max":      "is too large",
}

// ValidationErrors flattens validator errors into field -> message pairs.
func ValidationErrors(err error) []map[string]string {
	errList := make([]map[string]string, 0)

	var validationErr validator.ValidationErrors
	if !errors.As(err, &validationErr) {
		return errList
	}
	for _, e := range validationErr {
		msg, ok := validationMessages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		errList = append(errList, map[string]string{e.Field(): msg})
	}
	return errList
}
