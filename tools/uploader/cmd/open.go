package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var openConnection string

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Check that a connection can be opened",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ctx, a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.uploader.Check(ctx, openConnection); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Connection OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().StringVarP(&openConnection, "conn", "c", "", "connection string name or descriptor")
	_ = openCmd.MarkFlagRequired("conn")
}
