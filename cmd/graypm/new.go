package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

var (
	newName        string
	newID          int
	newCwd         string
	newInterpreter string
	newShell       bool
	newNohup       bool
	newStdout      string
	newStderr      string
	newMaxRestart  int
	newAutorun     bool
	newRewrite     bool
)

func init() {
	rootCmd.AddCommand(cmdNew)
	f := cmdNew.Flags()
	f.StringVarP(&newName, "name", "n", "", "Record name (default: first word of the command)")
	f.IntVar(&newID, "id", -1, "Explicit id (default: next free id)")
	f.StringVar(&newCwd, "cwd", "", "Working directory (default: current directory)")
	f.StringVarP(&newInterpreter, "interpreter", "i", "", "Interpreter to run the command with, e.g. python3")
	f.BoolVar(&newShell, "shell", false, "Run the command through /bin/sh -c")
	f.BoolVar(&newNohup, "nohup", false, "Detach the child into its own process group under nohup")
	f.StringVar(&newStdout, "stdout", "", "Stdout log file (default: <home>/log/<name>_<id>.log)")
	f.StringVar(&newStderr, "stderr", "", "Stderr log file (default: <home>/log/<name>_<id>.err)")
	f.IntVar(&newMaxRestart, "max-restart", 0, "Restart ceiling (default from config)")
	f.BoolVar(&newAutorun, "autorun", false, "Start the record when the daemon boots")
	f.BoolVar(&newRewrite, "rewrite", false, "Replace records holding the same id or name")
}

var cmdNew = &cobra.Command{
	Use:   "new [flags] -- <command> [args...]",
	Short: "Add a process definition to the table",
	Long: `Adds a record without starting it. A single argument is kept as a command
line; several arguments are stored as an argument vector.`,
	Example: `  graypm new --name web -- python3 -m http.server 8000
  graypm new --shell --name tick 'while true; do date; sleep 1; done'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := definitionFromFlags(args)
		if err != nil {
			return err
		}

		ctrl, release, err := openController(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		o, err := ctrl.Create(cmd.Context(), def, newRewrite)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), o); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), formatOutcome(o))
		}
		if o.Failed() {
			return errReported
		}
		return nil
	},
}

// definitionFromFlags builds the request from args and the new flags. Paths
// are made absolute here since the daemon runs in a different directory.
func definitionFromFlags(args []string) (record.Definition, error) {
	cmd := record.Argv(args...)
	if len(args) == 1 {
		cmd = record.Line(args[0])
	}

	cwd := newCwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return record.Definition{}, fmt.Errorf("resolving current directory: %w", err)
		}
		cwd = wd
	}

	def := record.Definition{
		Name:        newName,
		Cmd:         cmd,
		Interpreter: newInterpreter,
		Shell:       newShell,
		Nohup:       newNohup,
		MaxRestart:  newMaxRestart,
		Autorun:     newAutorun,
	}
	var err error
	if def.Cwd, err = filepath.Abs(cwd); err != nil {
		return record.Definition{}, err
	}
	if newStdout != "" {
		if def.Stdout, err = filepath.Abs(newStdout); err != nil {
			return record.Definition{}, err
		}
	}
	if newStderr != "" {
		if def.Stderr, err = filepath.Abs(newStderr); err != nil {
			return record.Definition{}, err
		}
	}
	if newID >= 0 {
		id := newID
		def.ID = &id
	}
	return def, nil
}
