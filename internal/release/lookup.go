package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/clock"
	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/version"
)

// DefaultAPIBase is the releases endpoint of the codex repository.
const DefaultAPIBase = "https://api.github.com/repos/openai/codex/releases"

const lookupUserAgent = "codex-wrapper-update-check"

// ErrNoRelease is returned when no tag candidate resolved a usable asset.
var ErrNoRelease = errors.New("no matching release asset")

type githubRelease struct {
	Name    string `json:"name"`
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
	} `json:"assets"`
}

// Resolver looks up release assets by tag.
type Resolver struct {
	client  httpclient.Client
	apiBase string
	cache   *Cache
	clock   clock.Clock
	logger  *slog.Logger
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(client httpclient.Client, cache *Cache, logger *slog.Logger) *Resolver {
	r := &Resolver{
		client:  client,
		apiBase: DefaultAPIBase,
		cache:   cache,
		clock:   clock.Real{},
		logger:  logging.Category(logger, "versions"),
	}
	if cache != nil {
		r.clock = cache.clock
	}
	return r
}

// SetAPIBase overrides the releases endpoint.
func (r *Resolver) SetAPIBase(base string) {
	r.apiBase = strings.TrimRight(base, "/")
}

// Lookup resolves the download for assetName at version ver. Tag variants
// are tried in order until one returns a release carrying assetName, or the
// fallback asset.
func (r *Resolver) Lookup(ctx context.Context, assetName, ver string) (*Asset, error) {
	ver = version.Normalize(ver)
	if ver == "" {
		return nil, fmt.Errorf("lookup %s: empty version", assetName)
	}
	if a, ok := r.cache.Get(assetName, ver); ok {
		r.logger.Debug("release cache hit", "asset", assetName, "version", ver)
		return a, nil
	}

	for tag := range TagCandidates(ver) {
		rel, err := r.fetchTag(ctx, tag)
		if err != nil {
			return nil, err
		}
		if rel == nil {
			continue
		}
		a := pickAsset(rel, assetName)
		if a == nil {
			r.logger.Debug("release has no matching asset", "tag", tag, "asset", assetName)
			continue
		}
		a.Version = ver
		a.Tag = tag
		a.FetchedAt = r.clock.Now().UTC()

		if err := r.cache.Put(assetName, ver, a); err != nil {
			r.logger.Warn("could not write release cache", "err", err)
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrNoRelease, assetName, ver)
}

// fetchTag returns nil without error when the tag does not exist.
func (r *Resolver) fetchTag(ctx context.Context, tag string) (*githubRelease, error) {
	req := &httpclient.Request{
		Method: http.MethodGet,
		URL:    r.apiBase + "/tags/" + url.PathEscape(tag),
		Header: http.Header{
			"Accept":     {"application/vnd.github+json"},
			"User-Agent": {lookupUserAgent},
		},
	}
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lookup tag %s: %w", tag, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !resp.OK() {
		return nil, fmt.Errorf("lookup tag %s: %w", tag, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)})
	}

	var rel githubRelease
	if err := json.Unmarshal(resp.Body, &rel); err != nil {
		return nil, fmt.Errorf("decode release %s: %w", tag, err)
	}
	return &rel, nil
}

func pickAsset(rel *githubRelease, assetName string) *Asset {
	var exact, fallback *Asset
	sigs := make(map[string]string)
	for _, ra := range rel.Assets {
		switch {
		case ra.URL == "":
		case ra.Name == assetName:
			exact = &Asset{Name: ra.Name, URL: ra.URL}
		case ra.Name == FallbackAssetName:
			fallback = &Asset{Name: ra.Name, URL: ra.URL}
		case strings.HasSuffix(ra.Name, ".sig"), strings.HasSuffix(ra.Name, ".asc"):
			sigs[strings.TrimSuffix(strings.TrimSuffix(ra.Name, ".sig"), ".asc")] = ra.URL
		}
	}
	a := exact
	if a == nil {
		a = fallback
	}
	if a != nil {
		a.SignatureURL = sigs[a.Name]
	}
	return a
}
