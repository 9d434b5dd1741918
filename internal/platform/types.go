// Package platform provides typed host detection for the launcher: OS,
// machine architecture, C runtime and Linux distribution. The result drives
// release asset selection and is exposed to Lua configs as a read-only
// platform table.
//
// Architecture comes from the kernel (gopsutil host.KernelArch) rather than
// GOARCH, so a 64-bit kernel running an emulated binary still reports the
// machine it runs on.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// C runtime names.
const (
	LibcGNU  = "glibc"
	LibcMusl = "musl"
)

// Libc describes the system C runtime. Zero value means unknown.
type Libc struct {
	Name    string // LibcGNU, LibcMusl or empty
	Version string // e.g. "2.39"
}

// Known reports whether a runtime version was detected.
func (l Libc) Known() bool {
	return l.Name != "" && l.Version != ""
}

func (l Libc) String() string {
	if !l.Known() {
		return "unknown"
	}
	return l.Name + " " + l.Version
}

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin"
	Arch     string // "amd64", "arm64", or the raw value when unrecognized
	ArchRaw  string // kernel machine name (e.g., "x86_64", "aarch64")
	Platform string // distro ID (Linux only, e.g., "ubuntu", "arch")
	Family   string // canonical family (e.g., "debian", "rhel", "arch")
	Version  string // distro version (Linux only, e.g., "22.04")
	Libc     Libc
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// String renders the info for the start banner, e.g. "linux/amd64 ubuntu 22.04 glibc 2.39".
func (i *Info) String() string {
	s := i.OS + "/" + i.Arch
	if i.Platform != "" {
		s += " " + i.Platform
		if i.Version != "" {
			s += " " + i.Version
		}
	}
	if i.IsLinux() {
		s += " " + i.Libc.String()
	}
	return s
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// LibcProbe reports the system C runtime.
type LibcProbe interface {
	Probe(ctx context.Context) (Libc, error)
}
