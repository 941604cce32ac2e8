// Command benchmark runs the cache hierarchy benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv            Output results in CSV format (default: human-readable)
//	-json           Output results in JSON format
//	-config         Path to hierarchy configuration JSON file
//	-direct-mapped  Use a single direct-mapped level
//	-core           Run only the core benchmarks
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/timing/cache"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	configPath := flag.String("config", "", "Path to hierarchy configuration JSON file")
	directMapped := flag.Bool("direct-mapped", false, "Use a single direct-mapped level")
	core := flag.Bool("core", false, "Run only the core benchmarks")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	config.Verbose = *verbose
	switch {
	case *configPath != "":
		hc, err := cache.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading cache config: %v\n", err)
			os.Exit(1)
		}
		config.Cache = hc
	case *directMapped:
		config.Cache = cache.DirectMappedConfig()
	}

	if err := config.Cache.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *core {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks(config.Cache))
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks(config.Cache))
	}

	human := !*csvOutput && !*jsonOutput

	// Print configuration
	if human {
		fmt.Println("Cache Hierarchy Benchmark Harness")
		fmt.Println("=================================")
		for i, l := range config.Cache.Levels {
			fmt.Printf("%s: %d lines, %d-way\n",
				config.Cache.LevelName(i), l.Lines, l.Associativity)
		}
		fmt.Printf("Block: %d bytes, Word: %d bytes, Memory: %d bytes\n",
			config.Cache.BlockSize, config.Cache.WordSize, config.Cache.MemorySize)
		fmt.Println("")
	}

	// Run benchmarks
	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- sequential_read: one miss per block, average cost close to the hit cost")
		fmt.Println("- block_stride: every access misses down to memory")
		fmt.Println("- temporal_reuse: every access hits the top level")
		fmt.Println("- top_level_conflict: every access is served by the next level")
		fmt.Println("- dirty_conflict: every eviction writes back")
		fmt.Println("- lru_ping_pong: the last level never misses")
		fmt.Println("- last_level_thrash: LRU misses every time")
	}
}
