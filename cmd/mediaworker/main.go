// Package main is the entry point for the mediaworker application.
package main

import (
	"os"

	"github.com/pixelharbor/mediaworker/cmd/mediaworker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
