// Package main is the nsbrowse command.
package main

import (
	"os"

	"github.com/leapstack-labs/nsbrowse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
