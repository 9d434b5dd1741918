package launcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/authsync"
	"github.com/ZebulonRouseFrantzich/cdx/internal/binary"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/release"
	"github.com/ZebulonRouseFrantzich/cdx/internal/version"
)

// updateTarget brings the codex binary at target up to remote and returns
// the local version afterwards. Failures are logged and never fatal.
func (l *Launcher) updateTarget(ctx context.Context, target, local, remote string) string {
	plan := release.Decide(l.rc.Platform, local, remote)
	if plan.Reason != "" {
		l.versions.Info(fmt.Sprintf("ok | local %s | check skipped (%s)", orUnknown(local), plan.Reason))
		return local
	}
	if !plan.Update {
		l.versions.Info(fmt.Sprintf("ok | local %s | api %s", orUnknown(local), plan.Remote))
		return local
	}

	if err := l.installCodex(ctx, target, plan); err != nil {
		l.versions.Warn(fmt.Sprintf("update to %s failed", plan.Remote), "err", err)
		return local
	}

	updated := l.ProbeVersion(ctx, target)
	l.versions.Info(fmt.Sprintf("updated | %s → %s (%s)", orUnknown(local), orUnknown(updated), plan.Remote))
	if updated == "" {
		return local
	}
	return updated
}

func (l *Launcher) installCodex(ctx context.Context, target string, plan release.Plan) error {
	if l.NPM != nil && l.NPM.Manages(ctx) {
		err := l.NPM.Install(ctx, plan.Remote)
		if err == nil {
			return nil
		}
		l.versions.Warn("npm update failed; trying release download", "err", err)
	}

	asset, err := l.Resolver.Lookup(ctx, plan.AssetName, plan.Remote)
	if err != nil {
		return err
	}
	_, err = l.Installer.Install(ctx, binary.Request{
		Target:       target,
		URL:          asset.URL,
		AssetName:    asset.Name,
		Version:      asset.Version,
		SignatureURL: asset.SignatureURL,
	})
	return err
}

// updateWrapper replaces the running launcher when the service advertises
// a different build. The new file is used by the next run.
func (l *Launcher) updateWrapper(ctx context.Context, remote authsync.RemoteVersions) {
	logger := logging.Category(l.rc.Logger, "wrapper")
	self := l.rc.WrapperPath
	if self == "" || remote.WrapperURL == "" {
		return
	}

	versionChanged := remote.WrapperVersion != "" &&
		version.Compare(remote.WrapperVersion, l.rc.WrapperVersion) != 0
	hashChanged := false
	if remote.WrapperSHA256 != "" {
		sum, err := binary.FileSHA256(self)
		if err != nil {
			logger.Warn("unable to hash current wrapper", "err", err)
			return
		}
		hashChanged = !strings.EqualFold(sum, remote.WrapperSHA256)
	}
	if !versionChanged && !hashChanged {
		return
	}
	if remote.WrapperSHA256 == "" {
		logger.Warn("update skipped: no published hash")
		return
	}

	link, err := l.wrapperURL(remote.WrapperURL)
	if err != nil {
		logger.Warn("update skipped: bad download url", "err", err)
		return
	}

	res, err := l.Installer.Install(ctx, binary.Request{
		Target:  self,
		URL:     link,
		Header:  l.rc.Engine.Header(),
		Version: remote.WrapperVersion,
		SHA256:  remote.WrapperSHA256,
	})
	switch {
	case err == nil:
		logger.Info(fmt.Sprintf("updated | %s → %s | restart to use the new wrapper",
			l.rc.WrapperVersion, orDefault(remote.WrapperVersion, "latest")), "path", res.Path)
	case binary.IsIntegrityError(err):
		logger.Warn("update skipped: hash mismatch", "err", err)
	case errors.Is(err, binary.ErrNotWritable):
		logger.Warn("update skipped: insufficient permissions", "path", self)
	default:
		logger.Warn("update failed", "err", err)
	}
}

func (l *Launcher) wrapperURL(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(l.rc.Engine.BaseURL() + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
