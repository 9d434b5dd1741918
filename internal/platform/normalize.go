package platform

import "strings"

// distroFamilies maps gopsutil's family and platform IDs onto the family
// constants. gopsutil reports e.g. "debian" for Ubuntu and "rhel" for Rocky.
var distroFamilies = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// NormalizeArch maps kernel machine names and GOARCH values onto "amd64"
// or "arm64". Anything else comes back cleaned with ok false, which
// disables release lookups for the run.
func NormalizeArch(arch string) (string, bool) {
	switch a := clean(arch); a {
	case "amd64", "x86_64":
		return "amd64", true
	case "arm64", "aarch64":
		return "arm64", true
	default:
		return a, false
	}
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func mapFamily(family string) string {
	if f, ok := distroFamilies[clean(family)]; ok {
		return f
	}
	return FamilyUnknown
}
