package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-pm/internal/audit"
)

var (
	historyID       int
	historyOp       string
	historySeverity string
	historyLimit    int
)

func init() {
	cmdHistory.Flags().IntVar(&historyID, "id", -1, "only outcomes of this record id")
	cmdHistory.Flags().StringVar(&historyOp, "op", "", "only this operation (create, start, stop, restart, reset, remove, exit)")
	cmdHistory.Flags().StringVar(&historySeverity, "severity", "", "only this severity (ok, warning, error)")
	cmdHistory.Flags().IntVarP(&historyLimit, "limit", "n", audit.DefaultLimit, "maximum number of entries")
	rootCmd.AddCommand(cmdHistory)
}

var cmdHistory = &cobra.Command{
	Use:   "history",
	Short: "Show recent lifecycle outcomes",
	Long:  "Shows the stored outcomes of lifecycle operations and unexpected exits, most recent first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctrl, release, err := openController(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		filter := audit.Filter{Op: historyOp, Severity: historySeverity, Limit: historyLimit}
		if historyID >= 0 {
			id := historyID
			filter.RecordID = &id
		}
		result, err := ctrl.History(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		if len(result.Logs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history yet")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), historyTable(result.Logs))
		if result.Total > len(result.Logs) {
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries shown\n", len(result.Logs), result.Total)
		}
		return nil
	},
}
