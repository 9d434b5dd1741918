package authsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/cdx/internal/config"
	"github.com/ZebulonRouseFrantzich/cdx/internal/credential"
	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
)

const validAuth = `{"last_refresh":"2025-11-01T00:00:00Z","auths":{"api.openai.com":{"token":"tok","token_type":"bearer"}}}`

// fakeService records requests and answers with scripted responses.
type fakeService struct {
	mu        sync.Mutex
	requests  []map[string]any
	apiKeys   []string
	responses []scripted
}

type scripted struct {
	code int
	body string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/auth" {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	json.Unmarshal(body, &req)
	f.requests = append(f.requests, req)
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-API-Key"))

	resp := scripted{code: http.StatusInternalServerError, body: `{"message":"no script"}`}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.code)
	w.Write([]byte(resp.body))
}

type harness struct {
	svc    *fakeService
	srv    *httptest.Server
	store  *credential.Store
	engine *Engine
	path   string
}

func newHarness(t *testing.T, local string, responses ...scripted) *harness {
	t.Helper()
	svc := &fakeService{responses: responses}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "auth.json")
	if local != "" {
		if err := os.WriteFile(path, []byte(local), 0o600); err != nil {
			t.Fatalf("write local auth: %v", err)
		}
	}
	store := credential.NewStore(path, nil)
	engine := NewEngine(httpclient.New(nil, nil), store, Options{
		BaseURL:  srv.URL + "/",
		APIKey:   "test-api-key-1234",
		LockPath: filepath.Join(dir, "auth.json.lock"),
	}, nil)
	return &harness{svc: svc, srv: srv, store: store, engine: engine, path: path}
}

func ok(data string) scripted {
	return scripted{code: http.StatusOK, body: `{"data":` + data + `}`}
}

func TestSync_ValidIsIdempotent(t *testing.T) {
	h := newHarness(t, validAuth, ok(`{"status":"valid","versions":{"client_version":"0.46.0","wrapper_version":"2025.11.23-3"}}`))

	old := time.Now().Add(-time.Hour)
	os.Chtimes(h.path, old, old)
	before, _ := os.ReadFile(h.path)

	for i := 0; i < 2; i++ {
		out := h.engine.Sync(context.Background(), PhasePull, Versions{Client: "0.46.0"})
		if out.Status != StatusValid || !out.Healthy() {
			t.Fatalf("call %d: Status = %s (%v)", i, out.Status, out.Err)
		}
		if out.Versions == nil || out.Versions.ClientVersion != "0.46.0" {
			t.Errorf("call %d: Versions = %+v", i, out.Versions)
		}
	}

	after, _ := os.ReadFile(h.path)
	st, _ := os.Stat(h.path)
	if !bytes.Equal(before, after) {
		t.Error("file content changed on valid sync")
	}
	if !st.ModTime().Equal(old) {
		t.Errorf("mtime changed: %v != %v", st.ModTime(), old)
	}

	req := h.svc.requests[0]
	if req["command"] != "retrieve" || req["client_version"] != "0.46.0" || req["last_refresh"] != "2025-11-01T00:00:00Z" {
		t.Errorf("retrieve request = %v", req)
	}
	if _, present := req["wrapper_version"]; present {
		t.Error("wrapper_version sent although unknown")
	}
	if h.svc.apiKeys[0] != "test-api-key-1234" {
		t.Errorf("X-API-Key = %q", h.svc.apiKeys[0])
	}
}

func TestSync_Outdated(t *testing.T) {
	h := newHarness(t, validAuth, ok(`{
		"status":"outdated",
		"auth":{"last_refresh":"old","auths":{"api.openai.com":{"token":"new-token","token_type":"bearer"}}},
		"canonical_last_refresh":"2025-11-20T00:00:00Z",
		"versions":{"client_version":"0.47.0","wrapper_sha256":"abc","wrapper_url":"/wrapper/cdx"}
	}`))

	out := h.engine.Sync(context.Background(), PhasePull, Versions{Wrapper: "2025.11.23-3"})
	if out.Status != StatusOutdated {
		t.Fatalf("Status = %s (%v)", out.Status, out.Err)
	}
	if out.NewRefresh != "2025-11-20T00:00:00Z" {
		t.Errorf("NewRefresh = %q", out.NewRefresh)
	}
	if out.Versions.WrapperURL != "/wrapper/cdx" {
		t.Errorf("Versions = %+v", out.Versions)
	}

	doc, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.LastRefresh() != "2025-11-20T00:00:00Z" || doc.Auths()["api.openai.com"].Token != "new-token" {
		t.Errorf("stored document = %v", doc)
	}

	req := h.svc.requests[0]
	if req["client_version"] != "unknown" || req["wrapper_version"] != "2025.11.23-3" {
		t.Errorf("retrieve request = %v", req)
	}
}

func TestSync_FreshHomeWithoutCodexDir(t *testing.T) {
	svc := &fakeService{responses: []scripted{ok(`{
		"status":"outdated",
		"auth":{"last_refresh":"2025-11-20T00:00:00Z","auths":{"api.openai.com":{"token":"tok","token_type":"bearer"}}}
	}`)}}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), ".codex", "auth.json")
	store := credential.NewStore(path, nil)
	engine := NewEngine(httpclient.New(nil, nil), store, Options{
		BaseURL:  srv.URL,
		APIKey:   "test-api-key-1234",
		LockPath: path + ".lock",
	}, nil)

	out := engine.Sync(context.Background(), PhasePull, Versions{})
	if !out.Healthy() {
		t.Fatalf("Status = %s reason = %s (%v)", out.Status, out.Reason, out.Err)
	}
	if len(svc.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(svc.requests))
	}
	if got := store.LastRefresh(); got != "2025-11-20T00:00:00Z" {
		t.Errorf("stored last_refresh = %q", got)
	}
}

func TestSync_OutdatedWithoutAuthKeepsLocal(t *testing.T) {
	h := newHarness(t, validAuth, ok(`{"status":"outdated","last_refresh":"2025-12-01T00:00:00Z"}`))

	out := h.engine.Sync(context.Background(), PhasePull, Versions{})
	if out.Status != StatusOutdated {
		t.Fatalf("Status = %s", out.Status)
	}
	doc, _ := h.store.Load()
	if doc.LastRefresh() != "2025-12-01T00:00:00Z" || doc.Auths()["api.openai.com"].Token != "tok" {
		t.Errorf("stored document = %v", doc)
	}
}

func TestSync_UploadRequired(t *testing.T) {
	for _, status := range []string{"missing", "upload_required", "something-new"} {
		t.Run(status, func(t *testing.T) {
			local := `{"last_refresh":"2025-11-02T00:00:00Z","tokens":{"access_token":"at"}}`
			h := newHarness(t, local,
				ok(`{"status":"`+status+`","canonical_digest":"server-digest","versions":{"client_version":"0.46.0"}}`),
				ok(`{"status":"stored","last_refresh":"2025-11-02T00:00:05Z","versions":{"client_version":"0.47.0"}}`),
			)

			out := h.engine.Sync(context.Background(), PhasePush, Versions{Client: "0.46.0"})
			if out.Status != StatusUploadRequired {
				t.Fatalf("Status = %s (%v)", out.Status, out.Err)
			}
			if len(h.svc.requests) != 2 {
				t.Fatalf("requests = %d, want 2", len(h.svc.requests))
			}

			store := h.svc.requests[1]
			if store["command"] != "store" || store["digest"] != "server-digest" {
				t.Errorf("store request = %v", store)
			}
			auth, _ := store["auth"].(map[string]any)
			auths, _ := auth["auths"].(map[string]any)
			if _, ok := auths[credential.FallbackHost]; !ok {
				t.Errorf("store auth not fallback-normalized: %v", auth)
			}

			if out.Versions == nil || out.Versions.ClientVersion != "0.47.0" {
				t.Errorf("Versions = %+v, want store response versions", out.Versions)
			}
			if got := h.store.LastRefresh(); got != "2025-11-02T00:00:05Z" {
				t.Errorf("stored last_refresh = %q", got)
			}
		})
	}
}

func TestSync_DigestUsesFallbackNormalizedForm(t *testing.T) {
	local := `{"last_refresh":"2025-11-02T00:00:00Z","auths":{},"tokens":{"access_token":"at"}}`
	h := newHarness(t, local, ok(`{"status":"valid"}`))

	h.engine.Sync(context.Background(), PhasePull, Versions{})

	doc, _ := credential.Parse([]byte(local))
	normalized, _ := credential.Digest(doc.Normalized())
	raw, _ := credential.Digest(doc)
	if normalized == raw {
		t.Fatal("fixture should produce different digests")
	}
	if got := h.svc.requests[0]["digest"]; got != normalized {
		t.Errorf("digest = %v, want normalized %s (raw %s)", got, normalized, raw)
	}
}

func TestSync_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantStatus Status
		wantKept   bool
	}{
		{"invalid key", 401, `{"message":"Invalid API key"}`, StatusDenied, false},
		{"key missing", 401, `{"message":"API key missing"}`, StatusDenied, true},
		{"other 401", 401, `{"message":"nope"}`, StatusDenied, true},
		{"host disabled", 403, `{"message":"Host is disabled"}`, StatusDisabled, false},
		{"ip mismatch message", 403, `{"message":"API key not allowed from this IP"}`, StatusDenied, true},
		{"ip mismatch details", 403, `{"message":"Forbidden","details":{"expected_ip":"10.0.0.1","received_ip":"10.0.0.2"}}`, StatusDenied, true},
		{"other 403", 403, `{"message":"Forbidden"}`, StatusTransportFailed, false},
		{"service disabled", 503, `{"message":"Service Disabled for maintenance"}`, StatusDisabled, true},
		{"other 503", 503, `upstream down`, StatusTransportFailed, false},
		{"server error", 500, `{"message":"boom"}`, StatusTransportFailed, false},
		{"malformed 200", 200, `not json`, StatusTransportFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, validAuth, scripted{code: tt.code, body: tt.body})

			out := h.engine.Sync(context.Background(), PhasePull, Versions{})
			if out.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s (reason %q)", out.Status, tt.wantStatus, out.Reason)
			}
			if out.Healthy() {
				t.Error("Healthy() = true for a failed exchange")
			}
			if kept := h.store.Exists(); kept != tt.wantKept {
				t.Errorf("file kept = %v, want %v", kept, tt.wantKept)
			}
		})
	}
}

func TestSync_TransportFailureDeletes(t *testing.T) {
	h := newHarness(t, validAuth)
	h.srv.Close()

	out := h.engine.Sync(context.Background(), PhasePull, Versions{})
	if out.Status != StatusTransportFailed {
		t.Fatalf("Status = %s", out.Status)
	}
	if !httpclient.IsTransport(out.Err) {
		t.Errorf("Err = %v, want TransportError", out.Err)
	}
	if h.store.Exists() {
		t.Error("local file should be removed after transport failure")
	}
}

func TestSync_NotConfigured(t *testing.T) {
	store := credential.NewStore(filepath.Join(t.TempDir(), "auth.json"), nil)

	optional := NewEngine(nil, store, Options{BaseURL: "https://x", Optional: true}, nil)
	if out := optional.Sync(context.Background(), PhasePull, Versions{}); out.Status != StatusSkipped || !out.Healthy() {
		t.Errorf("optional: Status = %s", out.Status)
	}

	required := NewEngine(nil, store, Options{BaseURL: "https://x"}, nil)
	out := required.Sync(context.Background(), PhasePull, Versions{})
	if out.Status != StatusTransportFailed || out.Healthy() {
		t.Errorf("required: Status = %s", out.Status)
	}
	if !errors.Is(out.Err, config.ErrMissingConfig) {
		t.Errorf("Err = %v, want ErrMissingConfig", out.Err)
	}
}

func TestSync_InvalidLocalReplacedByDefault(t *testing.T) {
	h := newHarness(t, `{"last_refresh":"","auths":{}}`,
		ok(`{"status":"outdated","auth":`+validAuth+`}`))

	out := h.engine.Sync(context.Background(), PhasePull, Versions{})
	if out.Status != StatusOutdated {
		t.Fatalf("Status = %s (%v)", out.Status, out.Err)
	}
	if got := h.svc.requests[0]["last_refresh"]; got != credential.DefaultLastRefresh {
		t.Errorf("last_refresh sent = %v, want default", got)
	}
	if got := h.store.LastRefresh(); got != "2025-11-01T00:00:00Z" {
		t.Errorf("stored last_refresh = %q", got)
	}
}

func TestSync_MissingLocalNotWrittenWhenServiceHasNothing(t *testing.T) {
	h := newHarness(t, "", ok(`{"status":"missing"}`), ok(`{"status":"stored"}`))

	out := h.engine.Sync(context.Background(), PhasePull, Versions{})
	if out.Status != StatusUploadRequired {
		t.Fatalf("Status = %s", out.Status)
	}
	if h.store.Exists() {
		t.Error("an invalid default document should not be written")
	}
}

func TestClassify(t *testing.T) {
	f := classify(403, []byte(`{"message":"Forbidden","details":{"expected_ip":"1.1.1.1"}}`))
	if f.status != StatusDenied || f.deleteLocal {
		t.Errorf("classify() = %+v", f)
	}
	if want := "API key not allowed from this IP (expected 1.1.1.1, received unknown)"; f.reason != want {
		t.Errorf("reason = %q, want %q", f.reason, want)
	}
}
