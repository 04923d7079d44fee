package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdPing)
}

var cmdPing = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctrl, release, err := openController(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		info, err := ctrl.Ping(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pong (pid %d, version %s, up %s, %d children)\n",
			info.PID, info.Version, info.Uptime, info.Handles)
		return nil
	},
}
