package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/testutil"
)

func TestBootstrap(t *testing.T) {
	home := testutil.SetupTestEnv(t)
	env := "CODEX_SYNC_BASE_URL=https://sync.example.test/\nCODEX_SYNC_API_KEY=abcd-secret-wxyz\n"
	if err := os.WriteFile(filepath.Join(home, ".codex", "sync.env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write sync.env: %v", err)
	}

	rc, err := Bootstrap(context.Background(), BootstrapOptions{
		WrapperVersion: "2025.11.23-3",
		AllowInsecure:  true,
		Logger:         logging.Discard(),
	})
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if !rc.Config.AllowInsecure {
		t.Error("AllowInsecure flag not applied")
	}
	if !rc.Engine.Configured() || rc.Engine.BaseURL() != "https://sync.example.test" {
		t.Errorf("engine base = %q, configured = %v", rc.Engine.BaseURL(), rc.Engine.Configured())
	}
	if want := filepath.Join(home, ".codex", "auth.json"); rc.Store.Path() != want {
		t.Errorf("store path = %q, want %q", rc.Store.Path(), want)
	}
	if rc.Platform == nil || rc.Platform.OS == "" {
		t.Errorf("platform = %+v", rc.Platform)
	}
	if rc.WrapperPath == "" || rc.Privileges.User == "" {
		t.Errorf("WrapperPath = %q, User = %q", rc.WrapperPath, rc.Privileges.User)
	}
}

func TestRunContext_CanManage(t *testing.T) {
	h := newHarness(t, `{"status":"valid"}`)
	if h.rc.CanManage() {
		t.Error("user without sudo can manage")
	}
	h.rc.Privileges.Sudo = true
	h.rc.Config.Managers = []string{"someone-else"}
	if h.rc.CanManage() {
		t.Error("user outside managers can manage")
	}
	h.rc.Config.Managers = append(h.rc.Config.Managers, "tester")
	if !h.rc.CanManage() {
		t.Error("listed sudo user cannot manage")
	}
}
