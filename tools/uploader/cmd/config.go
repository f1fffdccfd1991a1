package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TrevorEdris/transfer-utils/pkg/config"
)

var exampleOutputDir string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with the configuration file",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Write config.example.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.CreateExample(exampleOutputDir)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateConfigFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd, configValidateCmd)
	configExampleCmd.Flags().StringVarP(&exampleOutputDir, "output-dir", "o", ".", "directory to write the example into")
}
