// Package benchmarks provides access-pattern benchmarks for the cache
// hierarchy timing model.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/cachesim/driver"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

// LevelResult holds the statistics of one cache level after a benchmark.
type LevelResult struct {
	Name       string  `json:"name"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Evictions  uint64  `json:"evictions"`
	Writebacks uint64  `json:"writebacks"`
	HitRate    float64 `json:"hit_rate"`
}

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Reads and Writes count the word accesses issued
	Reads  uint64 `json:"reads"`
	Writes uint64 `json:"writes"`

	// SimulatedTime is the clock value at the end of the run
	SimulatedTime uint64 `json:"simulated_time"`

	// AverageCost is SimulatedTime per access
	AverageCost float64 `json:"average_cost"`

	// Levels holds per-level statistics, top level first
	Levels []LevelResult `json:"levels"`

	// MemoryReads/Writes count block transfers to and from memory
	MemoryReads  uint64 `json:"memory_reads"`
	MemoryWrites uint64 `json:"memory_writes"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Accesses returns the total number of word accesses.
func (r BenchmarkResult) Accesses() uint64 {
	return r.Reads + r.Writes
}

// Level returns the result of the named level.
func (r BenchmarkResult) Level(name string) (LevelResult, bool) {
	for _, l := range r.Levels {
		if l.Name == name {
			return l, true
		}
	}
	return LevelResult{}, false
}

// Benchmark defines a single access pattern.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the hierarchy before measurement, e.g. warms lines or
	// loads memory. Time and statistics are reset after it runs.
	Setup []driver.Access

	// Accesses is the measured access sequence
	Accesses []driver.Access
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Cache is the hierarchy every benchmark runs on. Each benchmark gets a
	// fresh instance.
	Cache *cache.HierarchyConfig

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Cache:   cache.DefaultConfig(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Cache == nil {
		config.Cache = cache.DefaultConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. It stops at the first
// benchmark that fails.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh hierarchy.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	hier, err := cache.NewHierarchy(h.config.Cache)
	if err != nil {
		return BenchmarkResult{}, err
	}

	if _, err := driver.Replay(hier, bench.Setup, nil); err != nil {
		return BenchmarkResult{}, fmt.Errorf("setup: %w", err)
	}
	hier.ResetTime()
	hier.ResetStats()

	counter := trace.NewEventCounter()
	hier.AcceptHook(counter)

	start := time.Now()
	replayed, err := driver.Replay(hier, bench.Accesses, nil)
	if err != nil {
		return BenchmarkResult{}, err
	}
	wallTime := time.Since(start)

	result := BenchmarkResult{
		Name:          bench.Name,
		Description:   bench.Description,
		Reads:         uint64(replayed.Reads),
		Writes:        uint64(replayed.Writes),
		SimulatedTime: replayed.Time,
		MemoryReads:   replayed.Stats.Memory.Reads,
		MemoryWrites:  replayed.Stats.Memory.Writes,
		WallTime:      wallTime,
	}

	if n := result.Accesses(); n > 0 {
		result.AverageCost = float64(result.SimulatedTime) / float64(n)
	}

	for _, l := range replayed.Stats.Levels {
		lr := LevelResult{
			Name:       l.Name,
			Hits:       l.Hits,
			Misses:     l.Misses,
			Evictions:  l.Evictions,
			Writebacks: l.Writebacks,
		}
		if lookups := l.Hits + l.Misses; lookups > 0 {
			lr.HitRate = float64(l.Hits) / float64(lookups)
		}
		result.Levels = append(result.Levels, lr)
	}

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d accesses, %d misses raised\n",
			bench.Name, result.Accesses(), counter.Total(cache.HookPosMiss))
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Cache Hierarchy Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Reads:          %d\n", r.Reads)
		_, _ = fmt.Fprintf(h.config.Output, "  Writes:         %d\n", r.Writes)
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Time: %d\n", r.SimulatedTime)
		_, _ = fmt.Fprintf(h.config.Output, "  Average Cost:   %.3f\n", r.AverageCost)

		for _, l := range r.Levels {
			_, _ = fmt.Fprintf(h.config.Output, "  --- %s ---\n", l.Name)
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:       %d\n", l.Hits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses:     %d\n", l.Misses)
			_, _ = fmt.Fprintf(h.config.Output, "  Hit Rate:   %.1f%%\n", l.HitRate*100)
			if l.Evictions > 0 {
				_, _ = fmt.Fprintf(h.config.Output, "  Evictions:  %d\n", l.Evictions)
				_, _ = fmt.Fprintf(h.config.Output, "  Writebacks: %d\n", l.Writebacks)
			}
		}

		_, _ = fmt.Fprintln(h.config.Output, "  --- Memory ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Reads:  %d\n", r.MemoryReads)
		_, _ = fmt.Fprintf(h.config.Output, "  Writes: %d\n", r.MemoryWrites)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison. Each
// level contributes hits, misses, evictions and writebacks columns.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	header := "name,reads,writes,time,average_cost"
	for _, name := range h.levelNames() {
		header += fmt.Sprintf(",%[1]s_hits,%[1]s_misses,%[1]s_evictions,%[1]s_writebacks",
			name)
	}
	header += ",memory_reads,memory_writes"
	_, _ = fmt.Fprintln(h.config.Output, header)

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f",
			r.Name, r.Reads, r.Writes, r.SimulatedTime, r.AverageCost)
		for _, l := range r.Levels {
			_, _ = fmt.Fprintf(h.config.Output, ",%d,%d,%d,%d",
				l.Hits, l.Misses, l.Evictions, l.Writebacks)
		}
		_, _ = fmt.Fprintf(h.config.Output, ",%d,%d\n", r.MemoryReads, r.MemoryWrites)
	}
}

func (h *Harness) levelNames() []string {
	names := make([]string, len(h.config.Cache.Levels))
	for i := range names {
		names[i] = h.config.Cache.LevelName(i)
	}
	return names
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config is the hierarchy the benchmarks ran on
	Config *cache.HierarchyConfig `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalTime is the sum of all simulated times
	TotalTime uint64 `json:"total_time"`

	// TotalAccesses is the sum of all word accesses
	TotalAccesses uint64 `json:"total_accesses"`

	// AverageCost is the simulated time per access over all benchmarks
	AverageCost float64 `json:"average_cost"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalTime, totalAccesses uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalTime += r.SimulatedTime
		totalAccesses += r.Accesses()
		totalWallTime += r.WallTime
	}

	avgCost := float64(0)
	if totalAccesses > 0 {
		avgCost = float64(totalTime) / float64(totalAccesses)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "0.1.0",
			Config:    h.config.Cache,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks: len(results),
			TotalTime:       totalTime,
			TotalAccesses:   totalAccesses,
			AverageCost:     avgCost,
			TotalWallTime:   totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
