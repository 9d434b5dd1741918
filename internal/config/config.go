package config

import (
	"errors"
	"time"
)

// DefaultBaseURL is the sync service used when no file names one.
const DefaultBaseURL = "https://codex-auth.uggs.io"

// DefaultCacheTTL is how long a resolved release asset stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// ErrMissingConfig means no API key (or base URL) is configured for sync.
var ErrMissingConfig = errors.New("sync config missing: set CODEX_SYNC_API_KEY in ~/.codex/sync.env")

// Config holds every setting the launcher reads at startup.
type Config struct {
	BaseURL       string
	APIKey        string
	FQDN          string
	CAFile        string
	AllowInsecure bool
	// Optional lets the launcher run without sync configured.
	Optional bool

	// Managers lists users allowed to update installs through sudo.
	// Empty means any user with passwordless sudo.
	Managers []string
	// Keyring is an armored OpenPGP keyring used to check release signatures.
	Keyring  string
	CacheTTL time.Duration

	// Binary overrides target binary discovery.
	Binary string

	// Sources lists the files that contributed settings, in load order.
	Sources []string
}

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		BaseURL:  DefaultBaseURL,
		CacheTTL: DefaultCacheTTL,
	}
}

// SyncConfigured reports whether both an endpoint and an API key are set.
func (c *Config) SyncConfigured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// MayManage applies the install authorization predicate to user.
func (c *Config) MayManage(user string) bool {
	if len(c.Managers) == 0 {
		return true
	}
	for _, m := range c.Managers {
		if m == user {
			return true
		}
	}
	return false
}

// MaskKey shortens a secret for display: the first and last four
// characters around an ellipsis. Short keys are returned as-is.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "…" + key[len(key)-4:]
}
