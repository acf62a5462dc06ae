// Package mcp exposes echonull sweeps, verification and history as MCP
// (Model Context Protocol) tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/echonull/internal/config"
	"github.com/nvandessel/echonull/internal/history"
	"github.com/nvandessel/echonull/internal/logging"
	"github.com/nvandessel/echonull/internal/ratelimit"
)

// Server wraps the MCP SDK server with the echonull tools.
type Server struct {
	server   *sdk.Server
	settings config.Config
	root     string
	ledger   *history.Store
	limiters ratelimit.Tools
	logger   *slog.Logger
	events   *logging.EventLog
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "echonull")
	Version string // Server version
	Root    string // Directory every tool output path must stay within

	// Settings supplies defaults for tool inputs. Nil means config.Default().
	Settings *config.Config
	Logger   *slog.Logger
	Events   *logging.EventLog
}

// NewServer creates an MCP server with the echonull tools registered. It
// opens the history ledger when history is enabled in Settings.
func NewServer(cfg *Config) (*Server, error) {
	settings := config.Default()
	if cfg.Settings != nil {
		settings = cfg.Settings
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, &sdk.ServerOptions{}),
		settings: *settings,
		root:     root,
		limiters: ratelimit.DefaultTools(),
		logger:   logging.OrDiscard(cfg.Logger),
		events:   cfg.Events,
	}

	if settings.History.Enabled {
		path, err := settings.HistoryPath()
		if err != nil {
			return nil, err
		}
		if s.ledger, err = history.Open(path); err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "echonull_sweep",
		Description: "Run a full deterministic sweep and write overview.json, manifest.json and an optional archive",
	}, s.handleSweep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "echonull_verify",
		Description: "Check that a sweep output's manifest matches its overview and any adjacent archive",
	}, s.handleVerify)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "echonull_history",
		Description: "List recorded sweeps or show one sweep by id",
	}, s.handleHistory)
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close releases the history ledger.
func (s *Server) Close() error {
	if s.ledger == nil {
		return nil
	}
	err := s.ledger.Close()
	s.ledger = nil
	return err
}
