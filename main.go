package main

import (
	"os"

	"github.com/teemow/slotfinder/cmd"
)

// Overridden at release time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
