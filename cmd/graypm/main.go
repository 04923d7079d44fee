// graypm - a lightweight process supervisor
//
// graypm keeps a persistent table of process definitions, starts and stops
// them on request, captures their output to rotated log files, and survives
// its own restarts by re-resolving stored pids.
//
// The same binary is both the daemon (`graypm daemon`) and the CLI. CLI
// commands talk to the daemon over loopback HTTP; --direct operates on the
// table without one.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Global flags shared by every command.
var (
	configPath string
	homeDir    string
	directMode bool
	jsonOutput bool
)

// errReported is returned after a command has already printed why it failed,
// so main only sets the exit status.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:           "graypm [command]",
	Short:         "graypm: lightweight process supervisor",
	Long:          `graypm keeps a table of process definitions and starts, stops and restarts them on request, with output captured to rotated log files.`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default $GRAYPM_CONFIG or <home>/config.yaml)")
	pf.StringVar(&homeDir, "home", "", "graypm home directory (default ~/.graypm)")
	pf.BoolVar(&directMode, "direct", false, "Operate on the process table directly instead of through the daemon")
	pf.BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}

// loadConfig resolves the home directory and config file, then loads the
// configuration. A missing config file leaves every default in place.
func loadConfig() (*config.Config, error) {
	if homeDir != "" {
		// The loader applies GRAYPM_HOME last; route the flag through it.
		if err := os.Setenv("GRAYPM_HOME", homeDir); err != nil {
			return nil, fmt.Errorf("setting home: %w", err)
		}
	}
	home := os.Getenv("GRAYPM_HOME")
	if home == "" {
		home = config.DefaultHome()
	}

	path := configPath
	if path == "" {
		path = os.Getenv("GRAYPM_CONFIG")
	}
	if path == "" {
		path = filepath.Join(home, "config.yaml")
	}

	cfg, err := config.LoadOrDefault(path, home)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
