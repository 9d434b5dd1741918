// Package launcher sequences one cdx run: credential pull, health gate,
// codex and wrapper updates, the supervised session, usage reporting and
// the credential push.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/cdx/internal/authsync"
	"github.com/ZebulonRouseFrantzich/cdx/internal/binary"
	"github.com/ZebulonRouseFrantzich/cdx/internal/config"
	"github.com/ZebulonRouseFrantzich/cdx/internal/credential"
	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
)

// RunContext is everything resolved once at startup and shared by the
// steps of a run.
type RunContext struct {
	Config     *config.Config
	Platform   *platform.Info
	Privileges binary.Privileges
	Logger     *slog.Logger

	Client httpclient.Client
	Store  *credential.Store
	Engine *authsync.Engine

	Home string
	// WrapperVersion is the running launcher's version.
	WrapperVersion string
	// WrapperPath is the resolved path of the running launcher.
	WrapperPath string
}

// CanManage reports whether this user may update the codex install.
func (rc *RunContext) CanManage() bool {
	return rc.Privileges.CanManage(rc.Config.MayManage)
}

// BootstrapOptions carries command-line settings into Bootstrap.
type BootstrapOptions struct {
	WrapperVersion string
	Debug          bool
	AllowInsecure  bool
	Logger         *slog.Logger
}

// Bootstrap detects the platform, loads configuration and builds the
// shared collaborators.
func Bootstrap(ctx context.Context, opts BootstrapOptions) (*RunContext, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(opts.Debug)
	}
	sys := logging.Category(logger, "system")

	info, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	loader := config.NewLoader(info, logger)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if opts.AllowInsecure {
		cfg.AllowInsecure = true
	}
	sys.Debug("config",
		"base", cfg.BaseURL,
		"api_key", config.MaskKey(cfg.APIKey),
		"fqdn", orNone(cfg.FQDN),
		"ca", orNone(cfg.CAFile),
		"allow_insecure", cfg.AllowInsecure,
		"sources", cfg.Sources,
	)
	if cfg.AllowInsecure {
		logging.Category(logger, "tls").Warn("verification fallback to insecure context is ENABLED")
	}

	candidates, caErr := httpclient.Candidates(cfg.CAFile, cfg.AllowInsecure)
	if caErr != nil {
		logging.Category(logger, "tls").Warn("custom CA ignored", "err", caErr)
	}
	client := httpclient.New(candidates, logger)
	client.SetUserAgent("cdx/" + opts.WrapperVersion)

	store := credential.NewStore(credential.DefaultPath(loader.Home), logger)
	engine := authsync.NewEngine(client, store, authsync.Options{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Optional: cfg.Optional,
		LockPath: store.Path() + ".lock",
	}, logger)

	return &RunContext{
		Config:         cfg,
		Platform:       info,
		Privileges:     binary.DetectPrivileges(ctx, nil),
		Logger:         logger,
		Client:         client,
		Store:          store,
		Engine:         engine,
		Home:           loader.Home,
		WrapperVersion: opts.WrapperVersion,
		WrapperPath:    selfPath(),
	}, nil
}

func selfPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
