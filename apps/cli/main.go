package main

import "github.com/abdul-hamid-achik/hitenv/apps/cli/cmd"

// Set by -ldflags at release time.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime)
}
