package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TrevorEdris/transfer-utils/pkg/config"
	"github.com/TrevorEdris/transfer-utils/pkg/provision"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Locate and verify the external ssh client",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		exe, err := provision.Init(context.Background(), cfg.Engine.Provision())
		if err != nil {
			return err
		}
		defer provision.Teardown()

		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", exe.Path, exe.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
