package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

type BodyKind int

const (
	BodyText BodyKind = iota
	BodyJSON
)

// Body is a webhook response body: either a JSON document or raw text.
// The kind is decided once when the response is read.
type Body struct {
	Kind BodyKind
	raw  json.RawMessage
	text string
}

func JSONBody(raw []byte) Body {
	return Body{Kind: BodyJSON, raw: append(json.RawMessage(nil), raw...)}
}

func TextBody(s string) Body {
	return Body{Kind: BodyText, text: s}
}

// ParseBody keeps data as JSON when it is a valid JSON document and as text
// otherwise. Destinations may answer with HTML or plain text. JSON carrying
// a \u0000 escape is kept as text, since jsonb cannot store U+0000.
func ParseBody(data []byte) Body {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && json.Valid(trimmed) && !hasNULEscape(trimmed) {
		return JSONBody(trimmed)
	}
	return TextBody(string(data))
}

// hasNULEscape reports whether raw contains a \u0000 escape that is not
// itself an escaped backslash followed by "u0000".
func hasNULEscape(raw []byte) bool {
	const esc = `\u0000`
	for i := 0; ; {
		j := bytes.Index(raw[i:], []byte(esc))
		if j < 0 {
			return false
		}
		pos := i + j
		slashes := 0
		for k := pos; k >= 0 && raw[k] == '\\'; k-- {
			slashes++
		}
		if slashes%2 == 1 {
			return true
		}
		i = pos + len(esc)
	}
}

func (b Body) IsJSON() bool { return b.Kind == BodyJSON }

// JSON returns the raw document, or nil for a text body.
func (b Body) JSON() json.RawMessage {
	if b.Kind != BodyJSON {
		return nil
	}
	return b.raw
}

// IsHTML reports whether a text body looks like an HTML page. Such bodies
// are rendered in a sandboxed frame by clients, not treated as errors.
func (b Body) IsHTML() bool {
	if b.Kind != BodyText {
		return false
	}
	head := strings.ToLower(strings.TrimSpace(b.text))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body")
}

func (b Body) String() string {
	if b.Kind == BodyJSON {
		return string(b.raw)
	}
	return b.text
}

// MarshalJSON stores JSON bodies verbatim and text bodies as a JSON string
// with NUL bytes removed, so either form fits a jsonb column.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.Kind == BodyJSON && len(b.raw) > 0 {
		return b.raw, nil
	}
	return json.Marshal(strings.ReplaceAll(b.text, "\x00", ""))
}

// Truncate returns at most limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
