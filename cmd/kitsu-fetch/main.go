// kitsu-fetch mirrors a Kitsu production into a local folder tree.
package main

import (
	"os"

	"github.com/studiopipe/kitsu-fetch/internal/cli"
	"github.com/studiopipe/kitsu-fetch/internal/version"
)

// Set with -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
