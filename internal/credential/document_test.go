package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func mustParse(t *testing.T, s string) Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", s, err)
	}
	return doc
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"auths entry", `{"last_refresh":"2025-01-01T00:00:00Z","auths":{"api.openai.com":{"token":"t","token_type":"bearer"}}}`, true},
		{"access token fallback", `{"last_refresh":"x","tokens":{"access_token":"tok"}}`, true},
		{"api key fallback", `{"last_refresh":"x","OPENAI_API_KEY":"sk-1"}`, true},
		{"empty auths no fallback", `{"last_refresh":"x","auths":{}}`, false},
		{"missing last_refresh", `{"auths":{"h":{"token":"t"}}}`, false},
		{"blank last_refresh", `{"last_refresh":"  ","auths":{"h":{"token":"t"}}}`, false},
		{"non-string last_refresh", `{"last_refresh":5,"auths":{"h":{"token":"t"}}}`, false},
		{"empty host key", `{"last_refresh":"x","auths":{"":{"token":"t"}}}`, false},
		{"empty token", `{"last_refresh":"x","auths":{"h":{"token":""}}}`, false},
		{"entry not object", `{"last_refresh":"x","auths":{"h":"t"}}`, false},
		{"auths not object", `{"last_refresh":"x","auths":[1],"OPENAI_API_KEY":"sk"}`, false},
		{"whitespace fallback", `{"last_refresh":"x","tokens":{"access_token":"  "}}`, false},
		{"null api key", `{"last_refresh":"x","OPENAI_API_KEY":null,"tokens":{"access_token":"a"}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(mustParse(t, tt.doc)); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v (err: %v)", got, tt.valid, Validate(mustParse(t, tt.doc)))
			}
		})
	}

	if IsValid(nil) {
		t.Error("IsValid(nil) = true")
	}
}

func TestNormalized(t *testing.T) {
	t.Run("synthesizes fallback host", func(t *testing.T) {
		doc := mustParse(t, `{"last_refresh":"x","auths":{},"tokens":{"access_token":" tok "}}`)
		norm := doc.Normalized()

		entry, ok := norm.Auths()[FallbackHost]
		if !ok {
			t.Fatalf("Normalized() auths = %v", norm["auths"])
		}
		if entry.Token != "tok" || entry.TokenType != "bearer" {
			t.Errorf("entry = %+v", entry)
		}
		if len(doc.Auths()) != 0 {
			t.Error("Normalized() mutated the original document")
		}
	})

	t.Run("keeps existing auths", func(t *testing.T) {
		doc := mustParse(t, `{"last_refresh":"x","auths":{"h":{"token":"t"}},"OPENAI_API_KEY":"sk"}`)
		if !Equal(doc.Normalized(), doc) {
			t.Error("Normalized() changed a document with auths")
		}
	})

	t.Run("prefers access token over api key", func(t *testing.T) {
		doc := mustParse(t, `{"last_refresh":"x","OPENAI_API_KEY":"sk","tokens":{"access_token":"at"}}`)
		if got := doc.Normalized().Auths()[FallbackHost].Token; got != "at" {
			t.Errorf("token = %q, want at", got)
		}
	})
}

func TestCanonicalMarshal(t *testing.T) {
	doc := mustParse(t, `{"z":1,"a":{"c":"<&>","b":[true,null,12345678901234567890]}}`)

	got, err := CanonicalMarshal(doc)
	if err != nil {
		t.Fatalf("CanonicalMarshal() error = %v", err)
	}
	want := `{"a":{"b":[true,null,12345678901234567890],"c":"<&>"},"z":1}`
	if string(got) != want {
		t.Errorf("CanonicalMarshal() = %s, want %s", got, want)
	}
}

func TestDigest(t *testing.T) {
	doc := mustParse(t, `{"last_refresh":"x","auths":{}}`)
	got, err := Digest(doc)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	sum := sha256.Sum256([]byte(`{"auths":{},"last_refresh":"x"}`))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("Digest() = %s, want %s", got, want)
	}

	reordered := mustParse(t, `{"auths":{},"last_refresh":"x"}`)
	if d2, _ := Digest(reordered); d2 != got {
		t.Error("Digest() depends on key order")
	}
}

func TestDefault(t *testing.T) {
	doc := Default()
	if doc.LastRefresh() != DefaultLastRefresh {
		t.Errorf("LastRefresh() = %q", doc.LastRefresh())
	}
	if IsValid(doc) {
		t.Error("Default() should not validate on its own")
	}
}
