package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
)

// Environment variables read by the loader.
const (
	EnvConfigPath    = "CODEX_SYNC_CONFIG_PATH"
	EnvLuaConfig     = "CDX_LUA_CONFIG"
	EnvAllowInsecure = "CODEX_SYNC_ALLOW_INSECURE"
	EnvOptional      = "CODEX_SYNC_OPTIONAL"
)

// systemEnvFiles are read before the per-user file.
var systemEnvFiles = []string{"/etc/codex-sync.env", "/usr/local/etc/codex-sync.env"}

// Loader assembles a Config from files and the environment.
type Loader struct {
	Home      string
	LookupEnv func(string) (string, bool)
	Platform  *platform.Info
	Logger    *slog.Logger
	// SystemFiles replaces the system env file list when non-nil.
	SystemFiles []string
}

// NewLoader returns a loader for the current user and process environment.
func NewLoader(info *platform.Info, logger *slog.Logger) *Loader {
	home, _ := os.UserHomeDir()
	return &Loader{
		Home:      home,
		LookupEnv: os.LookupEnv,
		Platform:  info,
		Logger:    logger,
	}
}

// EnvFiles returns the env files consulted, in override order.
func (l *Loader) EnvFiles() []string {
	if p, ok := l.lookup(EnvConfigPath); ok && p != "" {
		return []string{p}
	}
	files := systemEnvFiles
	if l.SystemFiles != nil {
		files = l.SystemFiles
	}
	out := append([]string{}, files...)
	if l.Home != "" {
		out = append(out, filepath.Join(l.Home, ".codex", "sync.env"))
	}
	return out
}

// LuaFile returns the Lua config path, or "" when there is none to try.
func (l *Loader) LuaFile() string {
	if p, ok := l.lookup(EnvLuaConfig); ok && p != "" {
		return p
	}
	if l.Home == "" {
		return ""
	}
	return filepath.Join(l.Home, ".codex", "cdx.lua")
}

// Load reads every layer. Missing files are skipped; unreadable env files
// are logged and skipped; a broken Lua file is an error.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	logger := logging.Category(l.Logger, "system")
	cfg := Default()

	for _, path := range l.EnvFiles() {
		values, err := ParseEnvFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("unable to read config file", "path", path, "err", err)
			}
			continue
		}
		applyEnv(cfg, values)
		cfg.Sources = append(cfg.Sources, path)
	}

	if path := l.LuaFile(); path != "" {
		lc, err := NewLuaParser(l.Platform).ParseFile(ctx, path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load %s: %w", path, err)
		default:
			lc.apply(cfg)
			cfg.Sources = append(cfg.Sources, path)
		}
	}

	if l.flag(EnvAllowInsecure) {
		cfg.AllowInsecure = true
	}
	if l.flag(EnvOptional) {
		cfg.Optional = true
	}

	return cfg, nil
}

func (l *Loader) lookup(key string) (string, bool) {
	if l.LookupEnv == nil {
		return "", false
	}
	return l.LookupEnv(key)
}

// flag reports whether key is present and not "0".
func (l *Loader) flag(key string) bool {
	v, ok := l.lookup(key)
	return ok && v != "0"
}
