package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvandessel/echonull/internal/config"
	"github.com/nvandessel/echonull/internal/manifest"
	"github.com/nvandessel/echonull/internal/sweep"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a sweep output against its manifest",
		Long: `Re-hash overview.json and compare it with the digest recorded in
manifest.json. If an archive sits next to the output directory, its
overview.json and manifest.json entries must match the files on disk.

Examples:
  echonull verify
  echonull verify --out /tmp/sweep --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			w := cmd.OutOrStdout()

			out, _ := cmd.Flags().GetString("out")
			if !cmd.Flags().Changed("out") {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				out = cfg.Sweep.Out
			}

			v, err := sweep.Verify(out)
			if err != nil {
				if jsonOut {
					json.NewEncoder(w).Encode(map[string]interface{}{
						"out":       out,
						"valid":     false,
						"integrity": errors.Is(err, manifest.ErrIntegrity),
						"error":     err.Error(),
					})
				} else {
					fmt.Fprintf(w, "FAILED: %v\n", err)
					fmt.Fprintf(w, "  Output: %s\n", out)
				}
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(w).Encode(map[string]interface{}{
					"out":      out,
					"valid":    true,
					"manifest": v.Manifest,
					"archives": v.Archives,
				})
			}

			fmt.Fprintf(w, "OK: manifest matches overview\n")
			fmt.Fprintf(w, "  Output:   %s\n", out)
			fmt.Fprintf(w, "  Runs:     %d\n", v.Manifest.Runs)
			fmt.Fprintf(w, "  Overview: sha256:%s\n", v.Manifest.OverviewSHA256)
			for _, a := range v.Archives {
				fmt.Fprintf(w, "  Archive:  %s (%d entries, current)\n", a.Path, a.Entries)
			}
			return nil
		},
	}

	cmd.Flags().String("out", config.DefaultOut, "Output directory to verify (default from config)")

	return cmd
}
