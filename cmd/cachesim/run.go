package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/driver"
)

var quiet bool

var runCmd = &cobra.Command{
	Use:   "run <trace|->",
	Short: "Replay an access trace.",
	Long: "`run` replays a trace file (or stdin for -) with one access per " +
		"line: `R addr`, `W addr value`, `T`, `Z` or `F`.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accesses, err := readTrace(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		s, err := newSession(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = s.close() }()

		out := cmd.OutOrStdout()
		lines := out
		if quiet {
			lines = io.Discard
		}

		res, err := driver.Replay(s.hierarchy, accesses, lines)
		if err != nil {
			return err
		}

		printReport(out, args[0], res, s.counter)

		return s.close()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false,
		"Only print the final report")
}

func readTrace(stdin io.Reader, path string) ([]driver.Access, error) {
	if path == "-" {
		return driver.ParseTrace(stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	return driver.ParseTrace(f)
}
