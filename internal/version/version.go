// Package version compares and normalizes the free-form version strings
// reported by the codex CLI, its release tags and the sync service.
package version

import (
	"fmt"
	"regexp"
	"strings"
)

// prefixes are stripped in order, each at most once.
var prefixes = []string{"codex-cli ", "codex ", "rust-", "v"}

var versionRegex = regexp.MustCompile(`\d+(?:\.\d+)+(?:[-+][0-9A-Za-z.-]+)?`)

// Normalize trims whitespace and strips product-name and build-tag prefixes
// so that "codex-cli 0.46.0", "rust-v0.46.0" and "0.46.0" compare equal.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, p := range prefixes {
		s = strings.TrimPrefix(s, p)
	}
	return strings.TrimSpace(s)
}

// Extract pulls the first dotted version out of command output.
func Extract(output string) (string, error) {
	match := versionRegex.FindString(output)
	if match == "" {
		return "", fmt.Errorf("no version found in output")
	}
	return match, nil
}

// FromOutput returns the best-effort version of `codex -V` style output.
// An empty string means the version is unknown.
func FromOutput(output string) string {
	if v, err := Extract(output); err == nil {
		return v
	}
	return Normalize(output)
}

// Compare returns -1, 0 or 1 depending on whether a sorts before, equal to,
// or after b. Both strings are split into alphanumeric runs; numeric runs
// compare as integers of any length, other runs compare case-insensitively.
// An exhausted side contributes an empty run, which sorts first.
// Empty input sorts before any non-empty string.
func Compare(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	ta, tb := tokenize(a), tokenize(b)
	n := max(len(ta), len(tb))
	for i := 0; i < n; i++ {
		if c := compareToken(tokenAt(ta, i), tokenAt(tb, i)); c != 0 {
			return c
		}
	}
	return 0
}

// Less reports whether local is older than remote after normalization.
func Less(local, remote string) bool {
	return Compare(Normalize(local), Normalize(remote)) < 0
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isAlnum(r) })
}

func tokenAt(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}

func compareToken(x, y string) int {
	if isNumeric(x) && isNumeric(y) {
		x, y = trimZeros(x), trimZeros(y)
		if len(x) != len(y) {
			return sign(len(x) - len(y))
		}
		return strings.Compare(x, y)
	}
	return strings.Compare(strings.ToLower(x), strings.ToLower(y))
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return r < 128 && (r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
