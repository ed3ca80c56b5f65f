// Command landlordctl is the LandlordComply command line.
package main

import (
	"os"

	"github.com/landlordcomply/landlordcomply/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate

	// Execute has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
