package launcher

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrTargetNotFound means no codex binary other than the launcher itself
// was found.
var ErrTargetNotFound = errors.New("unable to find the real codex binary")

// preferredTargets are checked before PATH.
var preferredTargets = []string{"/usr/local/bin/codex", "/opt/codex/bin/codex"}

// ResolveTarget finds the codex binary to run. override is tried first,
// then preferredTargets, then each PATH entry. Any candidate resolving to
// self is skipped so the launcher never runs itself.
func ResolveTarget(override, self, pathEnv string) (string, error) {
	selfReal := realPath(self)

	var candidates []string
	if override != "" {
		candidates = append(candidates, override)
	}
	candidates = append(candidates, preferredTargets...)
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = "."
		}
		candidates = append(candidates, filepath.Join(dir, "codex"))
	}

	for _, c := range candidates {
		if !isExecutable(c) {
			continue
		}
		resolved := realPath(c)
		if selfReal != "" && resolved == selfReal {
			continue
		}
		return resolved, nil
	}
	return "", ErrTargetNotFound
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

func realPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
