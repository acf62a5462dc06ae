package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nvandessel/echonull/internal/config"
	"github.com/nvandessel/echonull/internal/history"
	"github.com/nvandessel/echonull/internal/logging"
	"github.com/nvandessel/echonull/internal/sweep"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a full sweep",
		Long: `Run every run of a sweep on a bounded worker pool, then write
overview.json and manifest.json into the output directory.

Run i uses seed seed-base+i, so identical parameters always reproduce
identical overview and manifest bytes regardless of worker count.

Examples:
  echonull sweep                                 # 10 runs into ./_out
  echonull sweep --runs 50 --workers 8 --zip     # also write ./_out.zip
  echonull sweep --thresholds "" --out /tmp/s    # no graph thresholds`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applySweepFlags(cmd, cfg); err != nil {
				return err
			}
			noHistory, _ := cmd.Flags().GetBool("no-history")
			if noHistory {
				cfg.History.Enabled = false
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			logger := newLogger(cmd, cfg)
			events := newEventLog(cfg)
			defer events.Close()

			summary, err := runSweep(ctx, cfg, logger, events)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), summary, jsonOut)
		},
	}

	cmd.Flags().Int("runs", config.DefaultRuns, "Number of runs")
	cmd.Flags().String("thresholds", config.DefaultThresholds, "Comma-separated graph thresholds (empty for none)")
	cmd.Flags().String("out", config.DefaultOut, "Output directory")
	cmd.Flags().Int64("seed-base", config.DefaultSeedBase, "Seed base; run i uses seed-base+i")
	cmd.Flags().Int("workers", 0, "Concurrent runs (default: number of CPUs)")
	cmd.Flags().Bool("zip", false, "Archive the output directory next to it")
	cmd.Flags().String("format", "zip", "Archive format: zip or tar.gz")
	cmd.Flags().Bool("arrow", false, "Also write each dataset as multi.arrow")
	cmd.Flags().Bool("no-history", false, "Do not record this sweep in the history ledger")

	return cmd
}

// applySweepFlags overrides cfg with the sweep flags the user actually set,
// so config file and environment values survive unset flags.
func applySweepFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("runs") {
		cfg.Sweep.Runs, err = flags.GetInt("runs")
	}
	if err == nil && flags.Changed("thresholds") {
		cfg.Sweep.Thresholds, err = flags.GetString("thresholds")
	}
	if err == nil && flags.Changed("out") {
		cfg.Sweep.Out, err = flags.GetString("out")
	}
	if err == nil && flags.Changed("seed-base") {
		cfg.Sweep.SeedBase, err = flags.GetInt64("seed-base")
	}
	if err == nil && flags.Changed("workers") {
		cfg.Sweep.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("zip") {
		cfg.Archive.Enabled, err = flags.GetBool("zip")
	}
	if err == nil && flags.Changed("format") {
		cfg.Archive.Format, err = flags.GetString("format")
	}
	if err == nil && flags.Changed("arrow") {
		cfg.Dataset.Arrow, err = flags.GetBool("arrow")
	}
	return err
}

// runSweep validates cfg, opens the ledger when history is enabled, and runs
// one full sweep.
func runSweep(ctx context.Context, cfg *config.Config, logger *slog.Logger, events *logging.EventLog) (*sweep.Summary, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	runner := sweep.Runner{Logger: logger, Events: events}
	if cfg.History.Enabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		ledger, err := history.Open(path)
		if err != nil {
			// The bundle does not depend on the ledger.
			logger.Warn("history unavailable", "error", err)
		} else {
			defer ledger.Close()
			runner.Ledger = ledger
		}
	}

	return runner.Run(ctx, params)
}

func printSummary(w io.Writer, s *sweep.Summary, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(w).Encode(s)
	}

	fmt.Fprintf(w, "Sweep %s complete: %d runs in %s\n", s.SweepID, s.Runs, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Output:   %s\n", s.Out)
	fmt.Fprintf(w, "  Manifest: %s\n", s.ManifestPath)
	fmt.Fprintf(w, "  Overview: sha256:%s\n", s.OverviewDigest)
	if s.ArchivePath != "" {
		fmt.Fprintf(w, "  Archive:  %s\n", s.ArchivePath)
	}
	if len(s.Drift) > 0 {
		fmt.Fprintf(w, "  WARNING: dataset digests drifted from the previous identical sweep in runs %v\n", s.Drift)
	}
	return nil
}
