package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ZebulonRouseFrantzich/cdx/internal/authsync"
	"github.com/ZebulonRouseFrantzich/cdx/internal/binary"
	"github.com/ZebulonRouseFrantzich/cdx/internal/clock"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/release"
	"github.com/ZebulonRouseFrantzich/cdx/internal/supervisor"
	"github.com/ZebulonRouseFrantzich/cdx/internal/usage"
)

// ExitStartup is returned for failures before codex starts.
const ExitStartup = 1

// Launcher runs the launcher flow over a RunContext.
type Launcher struct {
	rc *RunContext

	Supervisor *supervisor.Supervisor
	Resolver   *release.Resolver
	Installer  *binary.Installer
	NPM        *binary.NPM
	Reporter   *usage.Reporter

	// ProbeVersion reports the installed codex version.
	ProbeVersion func(ctx context.Context, binary string) string
	// PathEnv is searched for codex. Defaults to $PATH.
	PathEnv string
	// CaptureDir holds the session capture log. Defaults to the temp dir.
	CaptureDir string

	sys      *slog.Logger
	versions *slog.Logger
}

// New wires the default collaborators for rc.
func New(rc *RunContext) (*Launcher, error) {
	logger := rc.Logger

	keyring, err := binary.LoadKeyring(rc.Config.Keyring)
	if err != nil {
		logging.Category(logger, "install").Warn("release signatures will not be checked", "err", err)
	}
	sudo := rc.Privileges.Sudo && !rc.Privileges.Root()
	installer, err := binary.NewInstaller(binary.Config{
		Client:   rc.Client,
		Verifier: binary.NewVerifier(keyring),
		Sudo:     sudo,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	cache := release.NewCache(release.DefaultCachePath(rc.Home), rc.Config.CacheTTL, clock.Real{})

	return &Launcher{
		rc:           rc,
		Supervisor:   supervisor.New(logger),
		Resolver:     release.NewResolver(rc.Client, cache, logger),
		Installer:    installer,
		NPM:          binary.NewNPM(nil, sudo, logger),
		Reporter:     usage.NewReporter(rc.Client, rc.Config.BaseURL, rc.Config.APIKey, logger),
		ProbeVersion: ProbeVersion,
		PathEnv:      os.Getenv("PATH"),
	}, nil
}

// Run executes one launcher session with the user's codex arguments and
// returns the process exit code.
func (l *Launcher) Run(ctx context.Context, userArgs []string) int {
	rc := l.rc
	l.sys = logging.Category(rc.Logger, "system")
	l.versions = logging.Category(rc.Logger, "versions")
	health := logging.Category(rc.Logger, "health")

	canManage := rc.CanManage()
	if !canManage {
		l.sys.Info("non-root; skipping automatic Codex install/update")
	}
	l.sys.Debug("starting", "user", rc.Privileges.User, "can_manage", canManage, "sudo", rc.Privileges.Sudo)

	target, err := ResolveTarget(rc.Config.Binary, rc.WrapperPath, l.PathEnv)
	if err != nil {
		l.sys.Error(err.Error() + " on PATH")
		return ExitStartup
	}
	logging.Category(rc.Logger, "start").Info(fmt.Sprintf("cdx %s | user %s | %s", rc.WrapperVersion, rc.Privileges.User, rc.Platform))

	local := l.ProbeVersion(ctx, target)
	if local == "" {
		l.versions.Warn("local unknown; will try refresh before launch")
	}

	pull := rc.Engine.Sync(ctx, authsync.PhasePull, authsync.Versions{Client: local, Wrapper: rc.WrapperVersion})
	if !pull.Healthy() {
		remoteWrapper := rc.WrapperVersion
		if pull.Versions != nil && pull.Versions.WrapperVersion != "" {
			remoteWrapper = pull.Versions.WrapperVersion
		}
		health.Warn(fmt.Sprintf("api fail | codex auth unavailable | cdx current (%s/%s)", rc.WrapperVersion, remoteWrapper))
		health.Error("auth unavailable; refusing to start Codex until sync succeeds")
		return ExitStartup
	}
	originalRefresh := rc.Store.LastRefresh()

	remote := remoteVersions(pull)
	if canManage {
		local = l.updateTarget(ctx, target, local, remote.ClientVersion)
	} else {
		l.versions.Info(fmt.Sprintf("ok | local %s | check skipped (not root)", orUnknown(local)))
	}
	l.updateWrapper(ctx, remote)

	health.Info(fmt.Sprintf("api ok | codex %s | cdx current (%s/%s)",
		codexState(local, remote.ClientVersion), rc.WrapperVersion, orDefault(remote.WrapperVersion, rc.WrapperVersion)))

	exitCode := l.runSession(ctx, target, userArgs)

	l.push(ctx, originalRefresh, local)
	return exitCode
}

func (l *Launcher) runSession(ctx context.Context, target string, userArgs []string) int {
	args, dropped := supervisor.BuildArgs(userArgs)
	for _, d := range dropped {
		l.sys.Warn("ignoring " + d + "; cdx always runs with --ask-for-approval never --sandbox danger-full-access")
	}

	capture := supervisor.NewCapturePath(l.CaptureDir)
	defer os.Remove(capture)

	run, err := l.Supervisor.Run(ctx, supervisor.Session{Binary: target, Args: args, CapturePath: capture})
	if err != nil {
		var pe *supervisor.ProcessError
		if errors.As(err, &pe) {
			l.sys.Error("unable to start codex", "err", pe.Err)
		} else {
			l.sys.Warn("session ended abnormally", "err", err)
		}
	}

	if l.rc.Engine.Configured() {
		l.Reporter.ReportFile(ctx, capture)
	} else {
		logging.Category(l.rc.Logger, "usage").Debug("skipped | sync not configured")
	}
	return run.ExitCode
}

// push uploads the credential document when the session changed it.
func (l *Launcher) push(ctx context.Context, originalRefresh, local string) {
	logger := logging.Category(l.rc.Logger, "push")
	refreshed := l.rc.Store.LastRefresh()

	switch {
	case originalRefresh == "" && refreshed == "":
		logger.Info("auth | skipped | no local auth.json")
	case refreshed == originalRefresh:
		logger.Info("auth | not-needed | auth.json unchanged")
	default:
		out := l.rc.Engine.Sync(ctx, authsync.PhasePush, authsync.Versions{Client: local, Wrapper: l.rc.WrapperVersion})
		if out.Healthy() {
			logger.Info("auth | uploaded | auth.json changed")
		} else {
			logger.Warn("auth | failed | api sync error")
		}
	}
}

func remoteVersions(out *authsync.Outcome) authsync.RemoteVersions {
	if out.Versions == nil {
		return authsync.RemoteVersions{}
	}
	return *out.Versions
}

func codexState(local, remote string) string {
	if remote != "" && local != "" && release.NeedsUpdate(local, remote) {
		return fmt.Sprintf("needs update (%s, local %s)", remote, local)
	}
	return fmt.Sprintf("current (%s)", orUnknown(local))
}

func orUnknown(s string) string {
	return orDefault(s, "unknown")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
