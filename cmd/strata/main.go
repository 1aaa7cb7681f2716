// Package main is the entry point for the strata CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/strata/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
