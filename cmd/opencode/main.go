// Package main provides the entry point for the opencode CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/toolrun/cmd/opencode/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
