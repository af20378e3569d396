package supabase

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractProjectRef(t *testing.T) {
	tests := map[string]string{
		"https://akrqbuajqkirdekonpzy.supabase.co": "akrqbuajqkirdekonpzy",
		"http://localref.supabase.co":              "localref",
		"akrqbuajqkirdekonpzy.supabase.co":         "akrqbuajqkirdekonpzy",
		"bare":                                     "bare",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, extractProjectRef(in), in)
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "eyJhbGciOi...", maskKey("eyJhbGciOiJIUzI1NiJ9.payload"))
	assert.Equal(t, "***", maskKey("short"))
}

func TestNewAuthenticatorRequiresSettings(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewAuthenticator("", "key", log)
	require.Error(t, err)

	_, err = NewAuthenticator("https://ref.supabase.co", "", log)
	require.Error(t, err)
}
