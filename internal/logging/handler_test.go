package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(NewHandler(&out, &errOut, &Options{Level: slog.LevelDebug}))

	Category(logger, "auth").Info("synced (no change)")
	Category(logger, "versions").Warn("lookup failed", "tag", "v0.46.0")
	logger.Error("unexpected", "err", "boom here")
	Category(logger, "tls").Debug("trying candidate", "name", "system")

	wantOut := "[info] auth    | synced (no change)\n[debug] tls     | trying candidate name=system\n"
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}

	wantErr := "[warn] versions | lookup failed tag=v0.46.0\n[fail] unexpected err=\"boom here\"\n"
	if errOut.String() != wantErr {
		t.Errorf("stderr = %q, want %q", errOut.String(), wantErr)
	}
}

func TestHandlerLevel(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(NewHandler(&out, &out, nil))

	logger.Debug("hidden")
	logger.Info("shown")

	if strings.Contains(out.String(), "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(out.String(), "shown") {
		t.Error("info record missing")
	}
}

func TestHandlerGroups(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(NewHandler(&out, &out, nil)).WithGroup("req").With("status", 401)

	logger.Info("denied", "reason", "invalid")

	want := "[info] denied req.status=401 req.reason=invalid\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	Category(nil, "auth").Info("dropped")
}
