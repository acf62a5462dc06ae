package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/echonull/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show echonull configuration",
		Long: `Show the effective configuration: defaults, then ~/.echonull/config.yaml
(or --config), then ECHONULL_* environment variables.

Examples:
  echonull config list                # Effective settings as YAML
  echonull config list --json         # ... or JSON
  echonull config get sweep.runs      # One setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(cfg)
			}

			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(w, "%s = %v\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (interface{}, bool) {
	switch key {
	case "sweep.runs":
		return cfg.Sweep.Runs, true
	case "sweep.thresholds":
		return cfg.Sweep.Thresholds, true
	case "sweep.out":
		return cfg.Sweep.Out, true
	case "sweep.seed_base":
		return cfg.Sweep.SeedBase, true
	case "sweep.workers":
		return cfg.Sweep.Workers, true
	case "dataset.rows":
		return cfg.Dataset.Rows, true
	case "dataset.cols":
		return cfg.Dataset.Cols, true
	case "dataset.arrow":
		return cfg.Dataset.Arrow, true
	case "archive.enabled":
		return cfg.Archive.Enabled, true
	case "archive.format":
		return cfg.Archive.Format, true
	case "history.enabled":
		return cfg.History.Enabled, true
	case "history.path":
		path, err := cfg.HistoryPath()
		if err != nil {
			return cfg.History.Path, true
		}
		return path, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}
