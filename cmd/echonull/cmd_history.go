package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/echonull/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded sweeps",
		Long: `Every successful sweep is recorded in ~/.echonull/history.db with
its parameters, overview digest and per-run dataset digests.

Examples:
  echonull history list
  echonull history show 5f0c...`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
	)

	return cmd
}

// openHistory opens the configured ledger for reading.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sweeps, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openHistory(cmd)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			sweeps, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				if sweeps == nil {
					sweeps = []history.Sweep{}
				}
				return json.NewEncoder(w).Encode(map[string]interface{}{
					"sweeps": sweeps,
					"count":  len(sweeps),
				})
			}

			if len(sweeps) == 0 {
				fmt.Fprintln(w, "No sweeps recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFINISHED\tRUNS\tSEED BASE\tOVERVIEW\tOUT")
			for _, sw := range sweeps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					sw.ID, sw.FinishedAt.Local().Format(time.DateTime), sw.Runs, sw.SeedBase,
					shortDigest(sw.OverviewSHA256), sw.OutDir)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum sweeps to show (0 for all)")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one sweep with its run digests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			store, err := openHistory(cmd)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			sw, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(sw)
			}

			thresholds := make([]string, len(sw.Thresholds))
			for i, thr := range sw.Thresholds {
				thresholds[i] = fmt.Sprintf("%g", thr)
			}

			fmt.Fprintf(w, "Sweep %s\n", sw.ID)
			fmt.Fprintf(w, "  Started:     %s\n", sw.StartedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(w, "  Finished:    %s\n", sw.FinishedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(w, "  Runs:        %d (workers %d)\n", sw.Runs, sw.Workers)
			fmt.Fprintf(w, "  Thresholds:  %s\n", strings.Join(thresholds, ","))
			fmt.Fprintf(w, "  Seed base:   %d\n", sw.SeedBase)
			fmt.Fprintf(w, "  Output:      %s\n", sw.OutDir)
			fmt.Fprintf(w, "  Overview:    sha256:%s\n", sw.OverviewSHA256)
			if sw.ArchivePath != "" {
				fmt.Fprintf(w, "  Archive:     %s\n", sw.ArchivePath)
			}
			fmt.Fprintln(w)
			for _, d := range sw.Digests {
				fmt.Fprintf(w, "  run_%04d/%s  %s\n", d.RunID, d.Artifact, d.SHA256)
			}
			return nil
		},
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
