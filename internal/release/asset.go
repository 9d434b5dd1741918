// Package release decides whether the codex binary needs updating and
// resolves the release asset to download.
package release

import (
	"iter"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
	"github.com/ZebulonRouseFrantzich/cdx/internal/version"
)

// MinGNULibc is the oldest glibc the gnu x86_64 build runs on. Older or
// unknown runtimes get the static musl build.
const MinGNULibc = "2.39"

// FallbackAssetName is accepted when no asset matches the identifier.
const FallbackAssetName = "codex"

const (
	assetX86Musl  = "codex-x86_64-unknown-linux-musl.tar.gz"
	assetX86GNU   = "codex-x86_64-unknown-linux-gnu.tar.gz"
	assetARM64GNU = "codex-aarch64-unknown-linux-gnu.tar.gz"
)

// AssetFor returns the asset identifier for info. ok is false for platforms
// without a published build, which disables update checks.
func AssetFor(info *platform.Info) (name string, ok bool) {
	if info == nil || !info.IsLinux() {
		return "", false
	}
	switch {
	case info.IsAMD64():
		if info.Libc.Name != platform.LibcGNU || !info.Libc.Known() ||
			version.Compare(info.Libc.Version, MinGNULibc) < 0 {
			return assetX86Musl, true
		}
		return assetX86GNU, true
	case info.IsARM64():
		return assetARM64GNU, true
	}
	return "", false
}

// NeedsUpdate reports whether local must be replaced by remote. An unknown
// local version always needs an update.
func NeedsUpdate(local, remote string) bool {
	if strings.TrimSpace(local) == "" {
		return true
	}
	return version.Less(local, remote)
}

// TagCandidates yields the release tags tried for v, in order: bare,
// "v"-prefixed and the "rust-" build-tag forms. The sequence is finite and
// can be ranged over more than once.
func TagCandidates(v string) iter.Seq[string] {
	v = version.Normalize(v)
	return func(yield func(string) bool) {
		if v == "" {
			return
		}
		for _, tag := range []string{v, "v" + v, "rust-" + v, "rust-v" + v} {
			if !yield(tag) {
				return
			}
		}
	}
}
