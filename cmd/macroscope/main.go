// Package main provides the CLI for Macroscope.
package main

import (
	"os"

	"github.com/leapstack-labs/macroscope/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
