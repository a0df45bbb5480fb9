// File: cmd/wsrelay/main.go
// Command wsrelay runs the WebSocket broadcast relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wsrelay: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	serve := serveCmd(getenv)

	root := &cobra.Command{
		Use:   "wsrelay",
		Short: "Non-blocking WebSocket broadcast relay",
		Long: `wsrelay accepts WebSocket clients and forwards every text message
it receives to all connected clients, sender included.

One goroutine multiplexes every socket through epoll. Slow clients are
buffered up to --max-pending-bytes and then dropped. An empty message
closes its sender.

Flag defaults can be set with WSRELAY_* environment variables or a .env
file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, versionCmd())
	return root
}
