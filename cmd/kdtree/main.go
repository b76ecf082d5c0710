// Package main provides the kdtree command line tool: density clustering
// and neighbor queries over point files.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
