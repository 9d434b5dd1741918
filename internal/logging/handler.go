// Package logging renders launcher logs as short category-prefixed lines:
//
//	[info] auth    | synced (no change)
//	[warn] install | update skipped: no write access to /usr/local/bin
//
// Records below warn go to stdout, warn and above go to stderr.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// CategoryKey is the attribute carrying the log category.
const CategoryKey = "category"

const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Options configures a Handler.
type Options struct {
	Level slog.Leveler
	// NoColor disables ANSI colors even on a terminal.
	NoColor bool
}

// Handler is a slog.Handler that writes one line per record.
type Handler struct {
	mu       *sync.Mutex
	out      io.Writer
	errOut   io.Writer
	colorOut bool
	colorErr bool
	level    slog.Leveler
	category string
	prefix   string
	attrs    []slog.Attr
}

// NewHandler creates a handler writing info/debug to out and warn/error to errOut.
func NewHandler(out, errOut io.Writer, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	color := !opts.NoColor && os.Getenv("NO_COLOR") == ""
	return &Handler{
		mu:       &sync.Mutex{},
		out:      out,
		errOut:   errOut,
		colorOut: color && writerIsTTY(out),
		colorErr: color && writerIsTTY(errOut),
		level:    level,
	}
}

// New returns a logger on os.Stdout/os.Stderr.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(NewHandler(os.Stdout, os.Stderr, &Options{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// Category scopes logger to one of the fixed log categories.
func Category(logger *slog.Logger, name string) *slog.Logger {
	return OrDiscard(logger).With(CategoryKey, name)
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	w, color := h.out, h.colorOut
	if r.Level >= slog.LevelWarn {
		w, color = h.errOut, h.colorErr
	}

	var b strings.Builder
	label, tint := levelLabel(r.Level)
	if color {
		b.WriteString(tint)
	}
	b.WriteString("[" + label + "]")
	if color {
		b.WriteString(colorReset)
	}
	b.WriteByte(' ')

	category := h.category
	var fields []string
	appendAttr := func(prefix string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Key == CategoryKey && prefix == "" {
			category = a.Value.String()
			return
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		fields = append(fields, prefix+a.Key+"="+formatValue(a.Value))
	}
	for _, a := range h.attrs {
		appendAttr("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(h.prefix, a)
		return true
	})

	if category != "" {
		fmt.Fprintf(&b, "%-7s | ", category)
	}
	b.WriteString(r.Message)
	for _, f := range fields {
		b.WriteByte(' ')
		if color {
			b.WriteString(colorDim + f + colorReset)
		} else {
			b.WriteString(f)
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if a.Key == CategoryKey && h.prefix == "" {
			clone.category = a.Value.String()
			continue
		}
		a.Key = h.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "fail", colorRed
	case level >= slog.LevelWarn:
		return "warn", colorYellow
	case level >= slog.LevelInfo:
		return "info", colorGreen
	default:
		return "debug", colorCyan
	}
}

func formatValue(v slog.Value) string {
	s := v.String()
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// writerIsTTY reports whether w is a file descriptor attached to a terminal.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}
