// Package testutil provides utilities for testing the launcher in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points HOME and every config lookup at a fresh temp
// directory and returns it. Tests never read the user's real
// ~/.codex/sync.env or auth.json.
//
// The cleanup function is automatically handled by t.TempDir(),
// so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	codexDir := filepath.Join(home, ".codex")
	if err := os.MkdirAll(codexDir, 0o700); err != nil {
		t.Fatalf("failed to create test directory %s: %v", codexDir, err)
	}

	t.Setenv("HOME", home)
	t.Setenv("CODEX_SYNC_CONFIG_PATH", filepath.Join(codexDir, "sync.env"))
	t.Setenv("CDX_LUA_CONFIG", filepath.Join(codexDir, "cdx.lua"))

	for _, key := range []string{"CODEX_SYNC_ALLOW_INSECURE", "CODEX_SYNC_OPTIONAL", "NO_COLOR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", path, err)
	}
	return path
}
