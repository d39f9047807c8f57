// bayeuxd CLI - mock CometD/Bayeux server for client testing
package main

import (
	"github.com/bayeuxd/bayeuxd/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
