package binary

import (
	"context"
	"os"
	"os/user"
	"time"

	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
)

const sudoProbeTimeout = 5 * time.Second

// Privileges describes what the current user may do to system paths.
type Privileges struct {
	EUID int
	User string
	// Sudo is true when non-interactive sudo works.
	Sudo bool
}

// Root reports whether the effective user is root.
func (p Privileges) Root() bool {
	return p.EUID == 0
}

// CanManage reports whether codex installs may be managed. Root always may;
// otherwise sudo must work and allowed, when set, must accept the user.
func (p Privileges) CanManage(allowed func(user string) bool) bool {
	if p.Root() {
		return true
	}
	if !p.Sudo {
		return false
	}
	return allowed == nil || allowed(p.User)
}

// DetectPrivileges inspects the effective uid, the login name and whether
// `sudo -n true` succeeds. run defaults to os/exec.
func DetectPrivileges(ctx context.Context, run platform.CommandRunner) Privileges {
	if run == nil {
		run = platform.ExecRunner
	}
	p := Privileges{EUID: os.Geteuid(), User: currentUser()}
	if p.Root() {
		p.Sudo = true
		return p
	}

	ctx, cancel := context.WithTimeout(ctx, sudoProbeTimeout)
	defer cancel()
	_, err := run(ctx, "sudo", "-n", "true")
	p.Sudo = err == nil
	return p
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
