// Command server is the bitwire reference process: a cobra CLI with a
// "serve" subcommand that runs internal/app.Run, a "schema" subcommand
// that dumps the message catalog as JSON-Schema, and a "version"
// subcommand, grounded on vango's cmd/vango/main.go root-command shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bitwire-server",
		Short:         "Authoritative bit-packed game server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		schemaCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bitwire-server: %v\n", err)
		os.Exit(1)
	}
}
