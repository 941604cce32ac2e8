package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

// configEnv names the environment variable holding a config file path.
const configEnv = "CACHESIM_CONFIG"

var (
	configPath   string
	directMapped bool
	verbose      bool
	recordPath   string
	record       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "Functional simulator of a multi-level write-back cache hierarchy.",
	Long: `cachesim replays word reads and writes against a hierarchy of ` +
		`set-associative write-back caches over a flat memory and reports ` +
		`the accumulated access cost.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(".env")
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "",
		"Path to hierarchy configuration JSON file (default $"+configEnv+")")
	flags.BoolVar(&directMapped, "direct-mapped", false,
		"Use a single direct-mapped level; not allowed with a config file")
	flags.BoolVarP(&verbose, "verbose", "v", false,
		"Log every cache event to stderr")
	flags.BoolVar(&record, "record", false,
		"Record every cache event into an SQLite database")
	flags.StringVar(&recordPath, "record-file", "",
		"Database path for --record (default: a generated name)")
}

// loadEnv loads variables from path if it exists. Variables already set in
// the environment win.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("failed to load %s: %w", path, err)
}

// loadHierarchyConfig picks the configuration from the flags or the
// environment.
func loadHierarchyConfig() (*cache.HierarchyConfig, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	if path != "" {
		if directMapped {
			return nil, fmt.Errorf(
				"--direct-mapped cannot be combined with config file %s", path)
		}

		return cache.LoadConfig(path)
	}

	if directMapped {
		return cache.DirectMappedConfig(), nil
	}

	return cache.DefaultConfig(), nil
}

// session is a hierarchy with the observers requested on the command line.
type session struct {
	hierarchy *cache.Hierarchy
	counter   *trace.EventCounter
	recorder  *trace.SQLiteRecorder
}

func newSession(stderr io.Writer) (*session, error) {
	config, err := loadHierarchyConfig()
	if err != nil {
		return nil, err
	}

	h, err := cache.NewHierarchy(config)
	if err != nil {
		return nil, err
	}

	s := &session{hierarchy: h, counter: trace.NewEventCounter()}
	h.AcceptHook(s.counter)

	if verbose {
		h.AcceptHook(trace.NewLogTracer(log.New(stderr, "", 0)))
	}

	if record {
		s.recorder = trace.NewSQLiteRecorder(recordPath)
		if err := s.recorder.Init(); err != nil {
			return nil, err
		}
		h.AcceptHook(s.recorder)
		fmt.Fprintf(stderr, "Recording events to %s\n", s.recorder.Filename())
	}

	return s, nil
}

func (s *session) close() error {
	if s.recorder == nil {
		return nil
	}

	return s.recorder.Close()
}
