package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Env file keys.
const (
	KeyBaseURL = "CODEX_SYNC_BASE_URL"
	KeyAPIKey  = "CODEX_SYNC_API_KEY"
	KeyFQDN    = "CODEX_SYNC_FQDN"
	KeyCAFile  = "CODEX_SYNC_CA_FILE"
)

// ParseEnv reads KEY=VALUE lines. Blank lines and # comments are skipped,
// an "export " prefix is allowed and matching quotes around values are
// removed.
func ParseEnv(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}
	return values, nil
}

// ParseEnvFile parses the env file at path.
func ParseEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseEnv(f)
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// applyEnv copies recognized keys onto cfg. Empty values are ignored.
func applyEnv(cfg *Config, values map[string]string) {
	if v := values[KeyBaseURL]; v != "" {
		cfg.BaseURL = v
	}
	if v := values[KeyAPIKey]; v != "" {
		cfg.APIKey = v
	}
	if v := values[KeyFQDN]; v != "" {
		cfg.FQDN = v
	}
	if v := values[KeyCAFile]; v != "" {
		cfg.CAFile = v
	}
}
