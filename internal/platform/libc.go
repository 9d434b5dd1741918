package platform

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

var (
	glibcVersionRegex = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)
	muslVersionRegex  = regexp.MustCompile(`(?m)^Version\s+(\d+\.\d+(?:\.\d+)?)`)
)

// CommandRunner runs a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandLibcProbe asks getconf for the glibc version and falls back to
// `ldd --version`, which also identifies musl.
type CommandLibcProbe struct {
	run CommandRunner
}

// NewLibcProbe returns a probe backed by the system commands.
func NewLibcProbe() *CommandLibcProbe {
	return &CommandLibcProbe{run: ExecRunner}
}

// NewLibcProbeWithRunner returns a probe using run instead of os/exec.
func NewLibcProbeWithRunner(run CommandRunner) *CommandLibcProbe {
	return &CommandLibcProbe{run: run}
}

// Probe returns the detected runtime or an error when neither command
// produced a recognizable answer.
func (p *CommandLibcProbe) Probe(ctx context.Context) (Libc, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if out, err := p.run(ctx, "getconf", "GNU_LIBC_VERSION"); err == nil {
		if libc, ok := parseGetconf(string(out)); ok {
			return libc, nil
		}
	}

	// ldd exits non-zero on musl even though it prints the version.
	out, err := p.run(ctx, "ldd", "--version")
	if libc, ok := parseLdd(string(out)); ok {
		return libc, nil
	}
	if err != nil {
		return Libc{}, fmt.Errorf("probe libc: %w", err)
	}
	return Libc{}, fmt.Errorf("probe libc: unrecognized ldd output")
}

// parseGetconf parses "glibc 2.39".
func parseGetconf(out string) (Libc, bool) {
	fields := strings.Fields(out)
	if len(fields) != 2 || fields[0] != "glibc" {
		return Libc{}, false
	}
	return Libc{Name: LibcGNU, Version: fields[1]}, true
}

func parseLdd(out string) (Libc, bool) {
	if strings.Contains(strings.ToLower(out), "musl") {
		libc := Libc{Name: LibcMusl}
		if m := muslVersionRegex.FindStringSubmatch(out); m != nil {
			libc.Version = m[1]
		}
		return libc, true
	}

	first, _, _ := strings.Cut(out, "\n")
	if !strings.Contains(first, "GLIBC") && !strings.Contains(first, "GNU libc") {
		return Libc{}, false
	}
	m := glibcVersionRegex.FindAllString(first, -1)
	if len(m) == 0 {
		return Libc{}, false
	}
	return Libc{Name: LibcGNU, Version: m[len(m)-1]}, true
}
