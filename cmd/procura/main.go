package main

import (
	"os"

	"github.com/Additional-Code/procura/internal/cli"
	"github.com/Additional-Code/procura/internal/observability"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version string

func main() {
	if version != "" {
		observability.ServiceVersion = version
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
