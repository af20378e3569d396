package supabase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supabase-community/gotrue-go"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies email/password credentials against Supabase auth.
type Authenticator struct {
	client gotrue.Client
	log    *slog.Logger
}

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	parts := strings.Split(url, ".")
	return parts[0]
}

// NewAuthenticator creates the auth client and checks that the project is
// reachable.
func NewAuthenticator(supabaseURL, supabaseKey string, log *slog.Logger) (*Authenticator, error) {
	if supabaseURL == "" || supabaseKey == "" {
		return nil, errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	projectRef := extractProjectRef(supabaseURL)
	log.Info("Initializing Supabase client", "project_ref", projectRef, "key", maskKey(supabaseKey))

	client := gotrue.New(projectRef, supabaseKey)
	if _, err := client.GetSettings(); err != nil {
		return nil, fmt.Errorf("failed to connect to Supabase: %w", err)
	}

	log.Info("Supabase connection successful")
	return &Authenticator{client: client, log: log}, nil
}

// SignIn returns the Supabase user id for valid credentials.
func (a *Authenticator) SignIn(email, password string) (string, error) {
	res, err := a.client.SignInWithEmailPassword(email, password)
	if err != nil {
		a.log.Info("Authentication failed", "email", email, "error", err)
		return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if res == nil || res.AccessToken == "" {
		return "", ErrInvalidCredentials
	}
	return res.User.ID.String(), nil
}

// maskKey keeps only a short prefix of a secret for logging.
func maskKey(key string) string {
	if len(key) > 10 {
		return key[:10] + "..."
	}
	return "***"
}
