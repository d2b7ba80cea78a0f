// Package main provides the entry point for the catalogsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/catalogsearch/cmd/catalogsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
