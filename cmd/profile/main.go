// Package main provides a profiling wrapper for cachesim to identify
// performance bottlenecks in the hierarchy model.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/cachesim/driver"
	"github.com/sarchlab/cachesim/timing/cache"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	configPath = flag.String("config", "", "Path to hierarchy configuration JSON file")
	accesses   = flag.Int("accesses", 1000000, "number of random accesses when no trace is given")
	repeat     = flag.Int("repeat", 1, "number of times to replay the trace")
	seed       = flag.Int64("seed", 1, "seed for the random access stream")
)

func main() {
	flag.Parse()

	config := cache.DefaultConfig()
	if *configPath != "" {
		var err error
		config, err = cache.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading cache config: %v\n", err)
			os.Exit(1)
		}
	}

	h, err := cache.NewHierarchy(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var stream []driver.Access
	if flag.NArg() > 0 {
		stream, err = loadTrace(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading trace: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded: %s (%d accesses)\n", flag.Arg(0), len(stream))
	} else {
		stream = randomStream(config, *accesses, *seed)
		fmt.Printf("Generated %d random accesses (seed %d)\n", len(stream), *seed)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	start := time.Now()

	var total int
	for i := 0; i < *repeat; i++ {
		res, err := driver.Replay(h, stream, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		total += res.Reads + res.Writes
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Accesses replayed: %d\n", total)
	fmt.Printf("Simulated time: %d\n", h.Time())
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if total > 0 {
		fmt.Printf("Accesses/second: %.0f\n", float64(total)/elapsed.Seconds())
	}
}

func loadTrace(path string) ([]driver.Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return driver.ParseTrace(f)
}

// randomStream returns n word-aligned accesses spread over memory, a third
// of them writes.
func randomStream(config *cache.HierarchyConfig, n int, seed int64) []driver.Access {
	rng := rand.New(rand.NewSource(seed))
	words := int64(config.MemorySize) / int64(config.WordSize)

	stream := make([]driver.Access, n)
	for i := range stream {
		addr := uint32(rng.Int63n(words) * int64(config.WordSize))
		if rng.Intn(3) == 0 {
			stream[i] = driver.Access{Op: driver.OpWrite, Addr: addr, Value: rng.Uint64()}
		} else {
			stream[i] = driver.Access{Op: driver.OpRead, Addr: addr}
		}
	}

	return stream
}
