// Package main is the entry point for sandboxctl.
package main

import (
	"os"

	"github.com/dshills/sandboxctl/internal/cli"
)

// Version information (set via ldflags during build).
var version = "dev"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:]))
}
