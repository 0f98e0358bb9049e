// Package main is the entry point for the wingship CLI.
//
// wingship installs Pterodactyl Wings on a set of hosts over SSH, registers
// each of them as a node on the panel and starts the daemon.
//
// For detailed usage information, run:
//
//	wingship --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nickalie/wingship/cmd/wingship/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
