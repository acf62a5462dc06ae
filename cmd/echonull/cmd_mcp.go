package main

import (
	"fmt"

	"github.com/nvandessel/echonull/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve echonull tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing:

  echonull_sweep    run a sweep (output confined to --root)
  echonull_verify   verify a sweep output
  echonull_history  list or show recorded sweeps

Tool defaults come from the loaded configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			events := newEventLog(cfg)
			defer events.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "echonull",
				Version:  version,
				Root:     root,
				Settings: cfg,
				// stdout carries the protocol.
				Logger: newLogger(cmd, cfg),
				Events: events,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			return server.Run(ctx)
		},
	}

	cmd.Flags().String("root", ".", "Directory tool output paths must stay within")

	return cmd
}
