package main

import (
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

func init() {
	rootCmd.AddCommand(
		lifecycleCommand(supervisor.OpStart, nil, "Start the matched records"),
		lifecycleCommand(supervisor.OpStop, nil, "Stop the matched records and their process trees"),
		lifecycleCommand(supervisor.OpRestart, nil, "Stop, then start the matched records"),
		lifecycleCommand(supervisor.OpReset, nil, "Zero the restart counter of the matched records"),
		lifecycleCommand("rm", []string{supervisor.OpRemove}, "Stop and delete the matched records"),
	)
}

// lifecycleCommand builds a command that runs op on each selector argument
// in turn and prints every outcome.
func lifecycleCommand(op string, aliases []string, short string) *cobra.Command {
	return &cobra.Command{
		Use:     op + " <selector>...",
		Aliases: aliases,
		Short:   short,
		Long:    short + ".\n\n" + selectorHelp,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, release, err := openController(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			var all []supervisor.Outcome
			for _, token := range args {
				outs, err := ctrl.Dispatch(cmd.Context(), op, token)
				if err != nil {
					return err
				}
				all = append(all, outs...)
			}
			return printOutcomes(cmd.OutOrStdout(), all)
		},
	}
}
