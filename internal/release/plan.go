package release

import (
	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
	"github.com/ZebulonRouseFrantzich/cdx/internal/version"
)

// Plan is the update decision for one run.
type Plan struct {
	AssetName string
	Local     string
	Remote    string
	Update    bool
	// Reason is set when the check was skipped.
	Reason string
}

// Decide chooses whether to update. remote is the client version reported
// by sync and may be empty, in which case the local version is its own
// baseline.
func Decide(info *platform.Info, local, remote string) Plan {
	p := Plan{Local: version.Normalize(local), Remote: version.Normalize(remote)}

	name, ok := AssetFor(info)
	if !ok {
		p.Reason = "unsupported platform"
		if info != nil {
			p.Reason += " " + info.String()
		}
		return p
	}
	p.AssetName = name

	if p.Remote == "" {
		p.Remote = p.Local
	}
	if p.Remote == "" {
		p.Reason = "no local or remote version"
		return p
	}
	p.Update = NeedsUpdate(p.Local, p.Remote)
	return p
}
