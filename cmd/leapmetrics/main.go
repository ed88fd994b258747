// Package main provides the leapmetrics CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapmetrics/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
