package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print, write or check a hierarchy configuration.",
	Long: "`config` validates the selected configuration and prints it as " +
		"JSON, or writes it to --output.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadHierarchyConfig()
		if err != nil {
			return err
		}

		if err := config.Validate(); err != nil {
			return err
		}

		if configOutput != "" {
			if err := config.SaveConfig(configOutput); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configOutput)
			return nil
		}

		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configOutput, "output", "o", "",
		"Write the configuration to this file")
}
