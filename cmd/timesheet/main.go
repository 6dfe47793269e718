package main

import (
	"os"

	"timesheet/internal/cli"
)

// version will be set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
