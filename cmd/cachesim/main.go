// Package main provides the cachesim command-line tool. It replays access
// traces and Starlark scripts against a configurable cache hierarchy and
// reports the simulated time and per-level statistics.
//
// Usage:
//
//	cachesim run [flags] <trace|->
//	cachesim script [flags] <file.star>
//	cachesim config [flags]
//
// The hierarchy configuration is read from --config, or from the
// CACHESIM_CONFIG environment variable, which may be set in a .env file.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
