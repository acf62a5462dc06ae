package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/echonull/internal/history"
	"github.com/nvandessel/echonull/internal/manifest"
	"github.com/nvandessel/echonull/internal/pathutil"
	"github.com/nvandessel/echonull/internal/sweep"
)

const defaultHistoryLimit = 20

// logTool records a tool call in the event log.
func (s *Server) logTool(tool string, start time.Time, err error, params map[string]any) {
	fields := map[string]any{
		"tool":        tool,
		"duration_ms": time.Since(start).Milliseconds(),
		"status":      "success",
	}
	if err != nil {
		fields["status"] = "error"
		fields["error"] = err.Error()
	}
	for k, v := range params {
		fields[k] = v
	}
	s.events.Log("tool_call", fields)
	s.logger.Debug("tool call", "tool", tool, "error", err)
}

// outDir confines a tool-supplied output directory to the server root. The
// root itself is rejected: its archive would land outside the root.
func (s *Server) outDir(out string) (string, error) {
	if out == "" {
		out = s.settings.Sweep.Out
	}
	abs, err := pathutil.Confine(out, s.root)
	if err != nil {
		return "", fmt.Errorf("output path rejected: %w", err)
	}
	// Compared resolved, so a link back to the root is caught too.
	resolved, err := pathutil.Resolve(abs)
	if err != nil {
		return "", fmt.Errorf("output path rejected: %w", err)
	}
	root, err := pathutil.Resolve(s.root)
	if err != nil {
		return "", fmt.Errorf("output path rejected: %w", err)
	}
	if resolved == root {
		return "", fmt.Errorf("output path rejected: must be a subdirectory of the server root")
	}
	return abs, nil
}

// handleSweep implements the echonull_sweep tool.
func (s *Server) handleSweep(ctx context.Context, req *sdk.CallToolRequest, args SweepInput) (_ *sdk.CallToolResult, _ SweepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.logTool("echonull_sweep", start, retErr, map[string]any{"out": args.Out})
	}()

	if err := s.limiters.Check("echonull_sweep"); err != nil {
		return nil, SweepOutput{}, err
	}

	cfg := s.settings
	if args.Runs != nil {
		cfg.Sweep.Runs = *args.Runs
	}
	if args.Thresholds != nil {
		cfg.Sweep.Thresholds = *args.Thresholds
	}
	if args.SeedBase != nil {
		cfg.Sweep.SeedBase = *args.SeedBase
	}
	if args.Workers > 0 {
		cfg.Sweep.Workers = args.Workers
	}
	if args.Archive != nil {
		cfg.Archive.Enabled = *args.Archive
	}
	if args.Format != "" {
		cfg.Archive.Format = args.Format
	}

	params, err := cfg.Params()
	if err != nil {
		return nil, SweepOutput{}, fmt.Errorf("invalid sweep parameters: %w", err)
	}
	if params.Out, err = s.outDir(args.Out); err != nil {
		return nil, SweepOutput{}, err
	}

	runner := sweep.Runner{Logger: s.logger, Events: s.events}
	if s.ledger != nil {
		runner.Ledger = s.ledger
	}

	summary, err := runner.Run(ctx, params)
	if err != nil {
		return nil, SweepOutput{}, fmt.Errorf("sweep failed: %w", err)
	}

	msg := fmt.Sprintf("Sweep %s: %d runs → %s", summary.SweepID, summary.Runs, summary.Out)
	if len(summary.Drift) > 0 {
		msg += fmt.Sprintf(" (drift in runs %v)", summary.Drift)
	}

	return nil, SweepOutput{
		SweepID:        summary.SweepID,
		Runs:           summary.Runs,
		Out:            summary.Out,
		OverviewSHA256: summary.OverviewDigest,
		ArchivePath:    summary.ArchivePath,
		Drift:          summary.Drift,
		DurationMs:     summary.Duration.Milliseconds(),
		Message:        msg,
	}, nil
}

// handleVerify implements the echonull_verify tool. An integrity mismatch is
// a result, not a tool error.
func (s *Server) handleVerify(ctx context.Context, req *sdk.CallToolRequest, args VerifyInput) (_ *sdk.CallToolResult, _ VerifyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.logTool("echonull_verify", start, retErr, map[string]any{"out": args.Out})
	}()

	if err := s.limiters.Check("echonull_verify"); err != nil {
		return nil, VerifyOutput{}, err
	}

	out, err := s.outDir(args.Out)
	if err != nil {
		return nil, VerifyOutput{}, err
	}

	v, err := sweep.Verify(out)
	if errors.Is(err, manifest.ErrIntegrity) {
		return nil, VerifyOutput{Out: out, Valid: false, Message: err.Error()}, nil
	}
	if err != nil {
		return nil, VerifyOutput{}, fmt.Errorf("verify failed: %w", err)
	}

	output := VerifyOutput{
		Out:            out,
		Valid:          true,
		Runs:           v.Manifest.Runs,
		OverviewSHA256: v.Manifest.OverviewSHA256,
		Message:        fmt.Sprintf("Manifest matches overview (%d runs)", v.Manifest.Runs),
	}
	for _, a := range v.Archives {
		output.Archives = append(output.Archives, a.Path)
	}
	return nil, output, nil
}

// handleHistory implements the echonull_history tool.
func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.logTool("echonull_history", start, retErr, map[string]any{"id": args.ID})
	}()

	if err := s.limiters.Check("echonull_history"); err != nil {
		return nil, HistoryOutput{}, err
	}
	if s.ledger == nil {
		return nil, HistoryOutput{}, fmt.Errorf("history is disabled")
	}

	var sweeps []history.Sweep
	if args.ID != "" {
		sw, err := s.ledger.Get(ctx, args.ID)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		sweeps = append(sweeps, *sw)
	} else {
		limit := args.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		var err error
		if sweeps, err = s.ledger.List(ctx, limit); err != nil {
			return nil, HistoryOutput{}, err
		}
	}

	records := make([]SweepRecord, 0, len(sweeps))
	for _, sw := range sweeps {
		records = append(records, SweepRecord{
			ID:             sw.ID,
			FinishedAt:     sw.FinishedAt,
			Runs:           sw.Runs,
			Thresholds:     sw.Thresholds,
			SeedBase:       sw.SeedBase,
			OutDir:         sw.OutDir,
			OverviewSHA256: sw.OverviewSHA256,
			ArchivePath:    sw.ArchivePath,
			RunDigests:     len(sw.Digests),
		})
	}
	return nil, HistoryOutput{Sweeps: records, Count: len(records)}, nil
}
