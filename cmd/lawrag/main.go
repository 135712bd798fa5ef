// Package main provides the entry point for the lawrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/lawrag/cmd/lawrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
