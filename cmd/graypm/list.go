package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

func init() {
	rootCmd.AddCommand(cmdList, cmdStatus)
}

// selectorArg returns the optional selector argument, defaulting to all
// visible records.
func selectorArg(args []string) string {
	if len(args) == 0 {
		return record.SelectAll
	}
	return args[0]
}

const selectorHelp = `The selector is an id, a name, or one of: all, ALL (including hidden),
hidden_only, autorun_only, autorun_enabled.`

var cmdList = &cobra.Command{
	Use:     "ls [selector]",
	Aliases: []string{"list"},
	Short:   "List process records",
	Long:    "Lists records with their liveness. Stale pids are cleared.\n\n" + selectorHelp,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, release, err := openController(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		token := selectorArg(args)
		entries, err := ctrl.List(cmd.Context(), token)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No process matches %q\n", token)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), listTable(entries))
		return nil
	},
}

var cmdStatus = &cobra.Command{
	Use:   "ps [selector]",
	Short: "Show records with live cpu, memory and children",
	Long:  "Shows records merged with live metrics. Metrics are best effort and left blank when the pid cannot be read.\n\n" + selectorHelp,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, release, err := openController(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		token := selectorArg(args)
		rows, err := ctrl.Status(cmd.Context(), token)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rows)
		}
		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No process matches %q\n", token)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), statusTable(rows))
		return nil
	},
}
