package main

import (
	"io"

	"github.com/spf13/pflag"
)

// options are the launcher's own flags. They must come before any codex
// argument.
type options struct {
	debug          bool
	allowInsecure  bool
	wrapperVersion bool
}

// launcherFlags lists the spellings consumed by the launcher.
var launcherFlags = map[string]bool{
	"--debug":              true,
	"--verbose":            true,
	"--allow-insecure-tls": true,
	"--wrapper-version":    true,
	"-W":                   true,
}

// splitArgs separates the leading launcher flags from the codex
// arguments. Splitting stops at the first argument the launcher does not
// own.
func splitArgs(args []string) (own, rest []string) {
	i := 0
	for i < len(args) && launcherFlags[args[i]] {
		i++
	}
	return args[:i], args[i:]
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cdx", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.debug, "debug", false, "log debug details")
	fs.BoolVar(&opts.debug, "verbose", false, "alias for --debug")
	fs.BoolVar(&opts.allowInsecure, "allow-insecure-tls", false, "retry TLS failures without verification")
	fs.BoolVarP(&opts.wrapperVersion, "wrapper-version", "W", false, "print the cdx version and exit")
	return fs
}

// parseArgs returns the launcher options and the arguments for codex.
func parseArgs(args []string) (*options, []string, error) {
	own, rest := splitArgs(args)
	opts := &options{}
	if err := newFlagSet(opts).Parse(own); err != nil {
		return nil, nil, err
	}
	return opts, rest, nil
}
