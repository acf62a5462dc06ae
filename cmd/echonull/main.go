package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/echonull/internal/config"
	"github.com/nvandessel/echonull/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "echonull",
		Short: "EchoNull - deterministic synthetic sweep runner",
		Long: `echonull runs parameterized sweeps of independent synthetic experiment runs.

Each run generates a seeded dataset and analysis artifacts under run_NNNN/.
The sweep writes an ordered overview.json, a manifest.json pinning the
overview's SHA-256, and optionally an archive next to the output directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.echonull/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSweepCmd(),
		newVerifyCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newWatchCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadConfig loads configuration for cmd: defaults, then the config file,
// then environment, then --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newLogger returns the stderr logger for cfg.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// newEventLog opens the event log in the state dir; nil at info level.
func newEventLog(cfg *config.Config) *logging.EventLog {
	stateDir, err := config.StateDir()
	if err != nil {
		return nil
	}
	return logging.NewEventLog(stateDir, cfg.Logging.Level)
}

// signalContext returns a context cancelled on the first shutdown signal.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
