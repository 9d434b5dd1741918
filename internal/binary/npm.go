package binary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
)

// NPMPackage is the global npm package that ships codex.
const NPMPackage = "codex-cli"

// NPM updates codex when it was installed as a global npm package.
type NPM struct {
	run    platform.CommandRunner
	sudo   bool
	logger *slog.Logger
}

// NewNPM creates an npm updater. When sudo is set, installs run through
// `sudo -n`.
func NewNPM(run platform.CommandRunner, sudo bool, logger *slog.Logger) *NPM {
	if run == nil {
		run = platform.ExecRunner
	}
	return &NPM{run: run, sudo: sudo, logger: logging.Category(logger, "install")}
}

// Manages reports whether `npm list -g` shows the codex package.
func (n *NPM) Manages(ctx context.Context) bool {
	out, err := n.run(ctx, "npm", "list", "-g", NPMPackage, "--depth=0")
	if err != nil {
		return false
	}
	return strings.Contains(string(out), NPMPackage+"@")
}

// Install installs ver globally. An empty ver installs the latest release.
func (n *NPM) Install(ctx context.Context, ver string) error {
	spec := NPMPackage
	if ver != "" {
		spec += "@" + ver
	}
	name, args := "npm", []string{"install", "-g", spec}
	if n.sudo {
		name, args = "sudo", append([]string{"-n", "npm"}, args...)
	}

	n.logger.Debug("running npm", "package", spec, "sudo", n.sudo)
	if out, err := n.run(ctx, name, args...); err != nil {
		return fmt.Errorf("npm install %s: %w: %s", spec, err, strings.TrimSpace(string(out)))
	}
	return nil
}
