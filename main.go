// Package main provides the entry point for cachesim.
// cachesim is a functional model of a multi-level write-back cache hierarchy.
//
// For the full CLI, use: go run ./cmd/cachesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cachesim - Cache Hierarchy Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: cachesim <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run <trace>      Replay an access trace")
	fmt.Println("  script <file>    Run a Starlark access script")
	fmt.Println("  config           Print or check a hierarchy configuration")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -c, --config     Path to hierarchy configuration JSON file")
	fmt.Println("  -v, --verbose    Log every cache event")
	fmt.Println("  --record         Record events into an SQLite database")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cachesim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cachesim' instead.")
	}
}
