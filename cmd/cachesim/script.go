package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/driver"
)

var scriptCmd = &cobra.Command{
	Use:   "script <file.star>",
	Short: "Run a Starlark script against the hierarchy.",
	Long: "`script` executes a Starlark program with the builtins " +
		"read(addr), write(addr, value), time(), reset_time() and flush().",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = s.close() }()

		runner := driver.NewScriptRunner(s.hierarchy, cmd.OutOrStdout())
		if _, err := runner.Run(args[0], nil); err != nil {
			return err
		}

		return s.close()
	},
}

func init() {
	rootCmd.AddCommand(scriptCmd)
}
