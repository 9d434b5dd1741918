// Command cdx launches codex with synced credentials, keeps codex and
// itself up to date, and reports token usage after each session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZebulonRouseFrantzich/cdx/internal/launcher"
)

// Version will be set at build time via -ldflags
var Version = "2025.11.23-3"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, codexArgs, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return launcher.ExitStartup
	}
	if opts.wrapperVersion {
		fmt.Printf("cdx wrapper %s\n", Version)
		return 0
	}

	// Interrupts belong to codex; the launcher outlives them to push.
	// signal.Ignore would be inherited by codex.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
		}
	}()
	ctx := context.Background()

	rc, err := launcher.Bootstrap(ctx, launcher.BootstrapOptions{
		WrapperVersion: Version,
		Debug:          opts.debug,
		AllowInsecure:  opts.allowInsecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return launcher.ExitStartup
	}

	l, err := launcher.New(rc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return launcher.ExitStartup
	}
	return l.Run(ctx, codexArgs)
}
