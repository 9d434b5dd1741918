// Package usage pulls the token usage summary out of a session capture log
// and reports it to the sync service.
package usage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Marker identifies candidate lines.
const Marker = "Token usage"

const maxLineSize = 1 << 20

var usagePattern = regexp.MustCompile(`(?i)Token usage:\s*total=([\d,]+)\s+input=([\d,]+)(?:\s*\(\+\s*([\d,]+)\s*cached\))?\s+output=([\d,]+)`)

// Report is the payload posted to the usage endpoint. Counts are nil when
// the line did not match the expected layout.
type Report struct {
	Line   string `json:"line"`
	Total  *int64 `json:"total,omitempty"`
	Input  *int64 `json:"input,omitempty"`
	Output *int64 `json:"output,omitempty"`
	Cached *int64 `json:"cached,omitempty"`
}

// Parsed reports whether the counts were extracted.
func (r *Report) Parsed() bool {
	return r.Total != nil
}

// Summary renders the counts as key=value pairs, or the raw line when none
// were parsed.
func (r *Report) Summary() string {
	var parts []string
	for _, kv := range []struct {
		key string
		val *int64
	}{{"total", r.Total}, {"input", r.Input}, {"output", r.Output}, {"cached", r.Cached}} {
		if kv.val != nil {
			parts = append(parts, fmt.Sprintf("%s=%d", kv.key, *kv.val))
		}
	}
	if len(parts) == 0 {
		return r.Line
	}
	return strings.Join(parts, " ")
}

// Extract scans r for the last line containing Marker. ok is false when no
// such line exists.
func Extract(r io.Reader) (rep *Report, ok bool, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var last string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, Marker) {
			continue
		}
		last = line
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("scan capture log: %w", err)
	}
	if last == "" {
		return nil, false, nil
	}
	return Parse(last), true, nil
}

// ExtractFile runs Extract over the file at path.
func ExtractFile(path string) (*Report, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open capture log: %w", err)
	}
	defer f.Close()
	return Extract(f)
}

// Parse builds a report from one marker line. Terminal escape sequences and
// surrounding whitespace are removed first.
func Parse(line string) *Report {
	line = strings.TrimSpace(ansi.Strip(line))
	rep := &Report{Line: line}

	m := usagePattern.FindStringSubmatch(line)
	if m == nil {
		return rep
	}
	rep.Total = count(m[1])
	rep.Input = count(m[2])
	rep.Cached = count(m[3])
	rep.Output = count(m[4])
	return rep
}

func count(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
