package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nvandessel/echonull/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the sweep whenever the config file changes",
		Long: `Run one sweep from the config file, then watch the file and run a
full sweep again after every change. A failed rerun is reported and the
watch continues. Stop with Ctrl+C.

Examples:
  echonull watch --config sweep.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				return fmt.Errorf("watch requires --config")
			}
			debounce, _ := cmd.Flags().GetDuration("debounce")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			events := newEventLog(cfg)
			defer events.Close()

			rerun := func(ctx context.Context) error {
				// Each rerun re-reads the file; nothing carries over.
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				summary, err := runSweep(ctx, cfg, logger, events)
				if err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), summary, jsonOut)
			}

			if err := rerun(ctx); err != nil {
				logger.Error("initial sweep failed", "error", err)
			}

			w := &watch.Watcher{
				Path:     path,
				Debounce: debounce,
				Logger:   logger,
				OnChange: rerun,
			}
			return w.Run(ctx, nil)
		},
	}

	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period after a change before rerunning")

	return cmd
}
