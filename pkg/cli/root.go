// Package cli implements the bayeuxd command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bayeuxd",
	Short: "bayeuxd is a mock CometD/Bayeux server for client testing",
	Long: `bayeuxd is a standalone mock server speaking the Bayeux protocol over
HTTP long-polling and WebSocket. It implements the /meta/* channels with
configurable advice, clientId expiry, forced reconnects, chaos injection,
and a control API for pushing events into held connects.

Configuration can be provided via flags, environment variables (BAYEUXD_*),
or a YAML/JSON configuration file.`,
	// No Run function here means 'bayeuxd' with no args will print help text by default.
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
