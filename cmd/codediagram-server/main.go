// Package main provides the entry point for the codediagram server.
package main

import (
	"fmt"
	"os"

	"github.com/codediagram/backend/cmd/codediagram-server/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
