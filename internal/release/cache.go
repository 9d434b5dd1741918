package release

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ZebulonRouseFrantzich/cdx/internal/clock"
)

// Asset is a resolved downloadable release artifact.
type Asset struct {
	Version      string    `toml:"version"`
	Tag          string    `toml:"tag"`
	Name         string    `toml:"asset_name"`
	URL          string    `toml:"download_url"`
	SignatureURL string    `toml:"signature_url,omitempty"`
	FetchedAt    time.Time `toml:"timestamp"`
}

// cacheFile is the on-disk layout.
type cacheFile struct {
	Entries map[string]Asset `toml:"entries"`
}

// Cache stores resolved assets keyed by asset identifier and version.
// Entries older than the TTL are ignored.
type Cache struct {
	path  string
	ttl   time.Duration
	clock clock.Clock
}

// NewCache creates a cache at path. A non-positive ttl disables reads.
func NewCache(path string, ttl time.Duration, c clock.Clock) *Cache {
	if c == nil {
		c = clock.Real{}
	}
	return &Cache{path: path, ttl: ttl, clock: c}
}

// DefaultCachePath returns ~/.codex/cdx/release-cache.toml.
func DefaultCachePath(home string) string {
	return filepath.Join(home, ".codex", "cdx", "release-cache.toml")
}

func cacheKey(assetName, ver string) string {
	return assetName + "@" + ver
}

// Get returns a fresh entry for assetName at version ver.
func (c *Cache) Get(assetName, ver string) (*Asset, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	f, err := c.read()
	if err != nil {
		return nil, false
	}
	a, ok := f.Entries[cacheKey(assetName, ver)]
	if !ok || a.URL == "" {
		return nil, false
	}
	age := c.clock.Now().Sub(a.FetchedAt)
	if age < 0 || age > c.ttl {
		return nil, false
	}
	return &a, true
}

// Put records a, dropping entries that are already stale.
func (c *Cache) Put(assetName, ver string, a *Asset) error {
	if c == nil {
		return nil
	}
	f, err := c.read()
	if err != nil {
		f = &cacheFile{}
	}
	if f.Entries == nil {
		f.Entries = make(map[string]Asset)
	}
	now := c.clock.Now()
	for k, e := range f.Entries {
		if now.Sub(e.FetchedAt) > c.ttl {
			delete(f.Entries, k)
		}
	}
	f.Entries[cacheKey(assetName, ver)] = *a

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".release-cache-*.toml")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(f); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (c *Cache) read() (*cacheFile, error) {
	var f cacheFile
	if _, err := toml.DecodeFile(c.path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cacheFile{}, nil
		}
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return &f, nil
}
