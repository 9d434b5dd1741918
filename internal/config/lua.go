package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

const (
	maxLuaConfigSize = 1 << 20
	luaGlobalCdx     = "cdx"
)

// ParseError represents a Lua config error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	detail := e.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", e.Message, detail)
}

// luaConfig is the subset of settings a Lua file may set. Pointers
// distinguish "unset" from zero values.
type luaConfig struct {
	BaseURL       *string
	APIKey        *string
	FQDN          *string
	CAFile        *string
	Optional      *bool
	AllowInsecure *bool
	Managers      []string
	Keyring       *string
	CacheTTL      *time.Duration
	Binary        *string
}

// LuaParser evaluates cdx.lua files.
type LuaParser struct {
	info *platform.Info
}

// NewLuaParser creates a parser exposing info as the platform table.
// A nil info omits the table.
func NewLuaParser(info *platform.Info) *LuaParser {
	return &LuaParser{info: info}
}

// ParseFile evaluates the Lua file at path.
func (p *LuaParser) ParseFile(ctx context.Context, path string) (*luaConfig, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > maxLuaConfigSize {
		return nil, &ParseError{Message: "config too large", Detail: fmt.Sprintf("%s is %d bytes", path, st.Size())}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.ParseString(ctx, string(data))
}

// ParseString evaluates Lua source and extracts the cdx table.
func (p *LuaParser) ParseString(ctx context.Context, code string) (*luaConfig, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	platform.ExposeToLua(L, p.info)

	if err := L.DoString(code); err != nil {
		return nil, &ParseError{Message: "Lua error", Detail: err.Error()}
	}

	root := L.GetGlobal(luaGlobalCdx)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'cdx' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	return extractConfig(root.(*lua.LTable))
}

func extractConfig(table *lua.LTable) (*luaConfig, error) {
	cfg := &luaConfig{}

	if sync, ok := table.RawGetString("sync").(*lua.LTable); ok {
		cfg.BaseURL = optString(sync, "base_url")
		cfg.APIKey = optString(sync, "api_key")
		cfg.FQDN = optString(sync, "fqdn")
		cfg.CAFile = optString(sync, "ca_file")
		cfg.Optional = optBool(sync, "optional")
		cfg.AllowInsecure = optBool(sync, "allow_insecure")
	}

	if install, ok := table.RawGetString("install").(*lua.LTable); ok {
		if managers, ok := install.RawGetString("managers").(*lua.LTable); ok {
			managers.ForEach(func(_, value lua.LValue) {
				if s, ok := value.(lua.LString); ok && s != "" {
					cfg.Managers = append(cfg.Managers, string(s))
				}
			})
		}
		cfg.Keyring = optString(install, "keyring")
		if n, ok := install.RawGetString("cache_ttl_minutes").(lua.LNumber); ok {
			if n < 0 {
				return nil, &ParseError{Message: "invalid install.cache_ttl_minutes", Detail: fmt.Sprintf("must be >= 0, got %v", n)}
			}
			ttl := time.Duration(float64(n) * float64(time.Minute))
			cfg.CacheTTL = &ttl
		}
	}

	if launch, ok := table.RawGetString("launch").(*lua.LTable); ok {
		cfg.Binary = optString(launch, "binary")
	}

	return cfg, nil
}

func optString(t *lua.LTable, field string) *string {
	if s, ok := t.RawGetString(field).(lua.LString); ok {
		v := string(s)
		return &v
	}
	return nil
}

func optBool(t *lua.LTable, field string) *bool {
	if b, ok := t.RawGetString(field).(lua.LBool); ok {
		v := bool(b)
		return &v
	}
	return nil
}

func (l *luaConfig) apply(cfg *Config) {
	set := func(dst *string, src *string) {
		if src != nil && *src != "" {
			*dst = *src
		}
	}
	set(&cfg.BaseURL, l.BaseURL)
	set(&cfg.APIKey, l.APIKey)
	set(&cfg.FQDN, l.FQDN)
	set(&cfg.CAFile, l.CAFile)
	set(&cfg.Keyring, l.Keyring)
	set(&cfg.Binary, l.Binary)
	if l.Optional != nil {
		cfg.Optional = *l.Optional
	}
	if l.AllowInsecure != nil {
		cfg.AllowInsecure = *l.AllowInsecure
	}
	if l.Managers != nil {
		cfg.Managers = l.Managers
	}
	if l.CacheTTL != nil {
		cfg.CacheTTL = *l.CacheTTL
	}
}
