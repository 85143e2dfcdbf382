// Package main provides the entry point for the codeseeker CLI.
package main

import (
	"os"

	"github.com/codeseeker/codeseeker/cmd/codeseeker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
