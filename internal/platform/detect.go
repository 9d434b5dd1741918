package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	libc LibcProbe
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{libc: NewLibcProbe()}
}

// NewDetectorWithProbe creates a detector with a custom C runtime probe.
func NewDetectorWithProbe(probe LibcProbe) Detector {
	return &RealDetector{libc: probe}
}

// Detect performs platform detection. Distribution and C runtime failures
// are not errors: the fields stay empty and the caller treats them as
// unknown. Only context cancellation is reported.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
	}

	if raw, err := host.KernelArch(); err == nil && raw != "" {
		info.ArchRaw = raw
	}
	info.Arch, _ = NormalizeArch(info.ArchRaw)

	if runtime.GOOS != "linux" {
		return info, nil
	}

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
	} else if p := clean(platform); p != "" {
		info.Platform = p
		info.Family = mapFamily(family)
		info.Version = clean(version)
	}

	if d.libc != nil {
		libc, err := d.libc.Probe(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		info.Libc = libc
	}

	return info, nil
}
