package webhook

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBody(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		isJSON bool
		isHTML bool
	}{
		{"json object", `{"message":"keep going"}`, true, false},
		{"json with whitespace", "  [1,2,3]\n", true, false},
		{"plain text", "thanks, processing", false, false},
		{"html page", "<!DOCTYPE html><html><body>Hi</body></html>", false, true},
		{"html fragment", "<div><body>x</body></div>", false, true},
		{"empty", "", false, false},
		{"truncated json", `{"message":`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ParseBody([]byte(tt.input))
			assert.Equal(t, tt.isJSON, b.IsJSON())
			assert.Equal(t, tt.isHTML, b.IsHTML())
		})
	}
}

func TestBodyMarshalJSON(t *testing.T) {
	out, err := json.Marshal(ParseBody([]byte(`{"error":"boom"}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"boom"}`, string(out))

	out, err = json.Marshal(TextBody("<p>hi</p>"))
	require.NoError(t, err)
	var s string
	require.NoError(t, json.Unmarshal(out, &s))
	assert.Equal(t, "<p>hi</p>", s)

	out, err = json.Marshal(Body{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(out))
}

func TestBodyWithNULFitsJSONB(t *testing.T) {
	t.Run("text body", func(t *testing.T) {
		out, err := json.Marshal(ParseBody([]byte("ok\x00done")))
		require.NoError(t, err)
		assert.Equal(t, `"okdone"`, string(out))
	})

	t.Run("json with NUL escape becomes text", func(t *testing.T) {
		b := ParseBody([]byte(`{"msg":"a\u0000b"}`))
		assert.False(t, b.IsJSON())

		out, err := json.Marshal(b)
		require.NoError(t, err)
		assert.False(t, hasNULEscape(out))
		var s string
		require.NoError(t, json.Unmarshal(out, &s))
		assert.Equal(t, `{"msg":"a\u0000b"}`, s)
	})

	t.Run("escaped backslash is not a NUL", func(t *testing.T) {
		b := ParseBody([]byte(`{"path":"C:\\u0000"}`))
		assert.True(t, b.IsJSON())
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("héééé", 3))
	assert.Len(t, []rune(Truncate(strings.Repeat("x", 5000), 1000)), 1000)
	assert.Equal(t, "abc", Truncate("abc", 0))
}
