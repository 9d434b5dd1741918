package launcher

import (
	"context"
	"os/exec"
	"time"

	"github.com/ZebulonRouseFrantzich/cdx/internal/version"
)

const versionProbeTimeout = 10 * time.Second

// ProbeVersion runs `binary -V` and returns the normalized version, or ""
// when it cannot be determined.
func ProbeVersion(ctx context.Context, binary string) string {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-V").Output()
	if err != nil && len(out) == 0 {
		return ""
	}
	return version.FromOutput(string(out))
}
