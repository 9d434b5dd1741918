// Package credential owns the local codex credential file (auth.json):
// parsing, validation, fallback normalization, digests and writes.
// It never talks to the network.
package credential

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultLastRefresh is the refresh marker of an empty document.
	DefaultLastRefresh = "2000-01-01T00:00:00Z"
	// FallbackHost receives the synthesized auths entry.
	FallbackHost = "api.openai.com"
)

// Document is a credential document. Unknown fields are preserved so a
// file written by the codex CLI round-trips unchanged.
type Document map[string]any

// AuthEntry is one host entry of the auths map.
type AuthEntry struct {
	Token     string
	TokenType string
}

// Default returns the document used when no valid local file exists.
func Default() Document {
	return Document{
		"last_refresh": DefaultLastRefresh,
		"auths":        map[string]any{},
	}
}

// Parse decodes a JSON object. Numbers are kept as json.Number so large
// integers survive a round trip.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode credential document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode credential document: not an object")
	}
	return doc, nil
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out, _ := deepCopy(map[string]any(d)).(map[string]any)
	return Document(out)
}

// LastRefresh returns the trimmed last_refresh string, or "".
func (d Document) LastRefresh() string {
	s, _ := d["last_refresh"].(string)
	return strings.TrimSpace(s)
}

// SetLastRefresh overwrites the refresh marker.
func (d Document) SetLastRefresh(v string) {
	d["last_refresh"] = v
}

// Auths returns the well-formed entries of the auths map.
func (d Document) Auths() map[string]AuthEntry {
	raw, _ := d["auths"].(map[string]any)
	out := make(map[string]AuthEntry, len(raw))
	for host, v := range raw {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		token, _ := entry["token"].(string)
		tokenType, _ := entry["token_type"].(string)
		out[host] = AuthEntry{Token: token, TokenType: tokenType}
	}
	return out
}

// FallbackToken returns the bearer token recoverable without an auths
// entry: tokens.access_token first, then OPENAI_API_KEY, then api_key.
func (d Document) FallbackToken() string {
	if tokens, ok := d["tokens"].(map[string]any); ok {
		if s, ok := tokens["access_token"].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	for _, key := range []string{"OPENAI_API_KEY", "api_key"} {
		if s, ok := d[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Normalized returns a copy whose auths map holds a FallbackHost entry when
// the original has no auths but a fallback token. The copy is for
// transmission only.
func (d Document) Normalized() Document {
	out := d.Clone()
	if out == nil {
		out = Default()
	}
	if raw, _ := out["auths"].(map[string]any); len(raw) > 0 {
		return out
	}
	if token := out.FallbackToken(); token != "" {
		out["auths"] = map[string]any{
			FallbackHost: map[string]any{"token": token, "token_type": "bearer"},
		}
	}
	return out
}

// Validate reports whether d is usable: a non-empty last_refresh and either
// well-formed auths or a fallback token.
func Validate(d Document) error {
	if d == nil {
		return fmt.Errorf("document is empty")
	}
	if s, ok := d["last_refresh"].(string); !ok || strings.TrimSpace(s) == "" {
		return fmt.Errorf("last_refresh must be a non-empty string")
	}

	hasAuths := false
	if v, present := d["auths"]; present && v != nil {
		raw, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("auths must be an object")
		}
		for host, entry := range raw {
			if strings.TrimSpace(host) == "" {
				return fmt.Errorf("auths contains an empty host")
			}
			m, ok := entry.(map[string]any)
			if !ok {
				return fmt.Errorf("auths[%s] must be an object", host)
			}
			if token, ok := m["token"].(string); !ok || strings.TrimSpace(token) == "" {
				return fmt.Errorf("auths[%s] is missing a token", host)
			}
		}
		hasAuths = len(raw) > 0
	}

	if !hasAuths && d.FallbackToken() == "" {
		return fmt.Errorf("no auths entries and no fallback token")
	}
	return nil
}

// IsValid is Validate as a predicate.
func IsValid(d Document) bool {
	return Validate(d) == nil
}

// Digest returns the hex SHA-256 of the canonical encoding of d.
func Digest(d Document) (string, error) {
	data, err := CanonicalMarshal(d)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalMarshal produces deterministic JSON: keys sorted, no whitespace,
// no HTML escaping.
func CanonicalMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case Document:
		return writeCanonical(buf, map[string]any(val))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return writeScalar(buf, val)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case Document:
		return deepCopy(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return val
	}
}

// Equal reports whether two documents have the same canonical encoding.
func Equal(a, b Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, errA := CanonicalMarshal(a)
	cb, errB := CanonicalMarshal(b)
	return errA == nil && errB == nil && bytes.Equal(ca, cb)
}
