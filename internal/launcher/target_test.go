package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/cdx/internal/testutil"
)

func noPreferred(t *testing.T) {
	t.Helper()
	saved := preferredTargets
	preferredTargets = nil
	t.Cleanup(func() { preferredTargets = saved })
}

func TestResolveTarget(t *testing.T) {
	noPreferred(t)

	first := t.TempDir()
	second := t.TempDir()
	empty := t.TempDir()
	codex := testutil.WriteScript(t, second, "codex", "exit 0\n")

	// first/codex is the launcher itself, installed under the codex name.
	self := testutil.WriteScript(t, t.TempDir(), "cdx", "exit 0\n")
	if err := os.Symlink(self, filepath.Join(first, "codex")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	// A non-executable file is not a candidate.
	if err := os.WriteFile(filepath.Join(empty, "codex"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	pathEnv := strings.Join([]string{empty, first, second}, string(os.PathListSeparator))

	got, err := ResolveTarget("", self, pathEnv)
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(codex)
	if got != want {
		t.Errorf("ResolveTarget() = %q, want %q", got, want)
	}

	override := testutil.WriteScript(t, t.TempDir(), "my-codex", "exit 0\n")
	got, err = ResolveTarget(override, self, pathEnv)
	if err != nil {
		t.Fatalf("ResolveTarget(override) error = %v", err)
	}
	if want, _ := filepath.EvalSymlinks(override); got != want {
		t.Errorf("ResolveTarget(override) = %q, want %q", got, want)
	}

	if _, err := ResolveTarget("", self, first); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("only self on PATH: err = %v, want ErrTargetNotFound", err)
	}
}

func TestResolveTarget_DirectoryIsSkipped(t *testing.T) {
	noPreferred(t)
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "codex"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := ResolveTarget("", "", dir); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestProbeVersion(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"cli banner", "echo 'codex-cli 0.46.0'\n", "0.46.0"},
		{"failing binary", "exit 1\n", ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := testutil.WriteScript(t, dir, "codex"+string(rune('a'+i)), tt.body)
			if got := ProbeVersion(context.Background(), bin); got != tt.want {
				t.Errorf("ProbeVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}
