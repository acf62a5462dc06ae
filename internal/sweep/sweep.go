// Package sweep runs a parameterized set of independent synthetic runs on a
// bounded worker pool and assembles their results into the output bundle:
// per-run directories, overview.json, manifest.json and, optionally, an
// archive next to the output root.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/echonull/internal/analyzer"
	"github.com/nvandessel/echonull/internal/archive"
	"github.com/nvandessel/echonull/internal/dataset"
	"github.com/nvandessel/echonull/internal/history"
	"github.com/nvandessel/echonull/internal/logging"
	"github.com/nvandessel/echonull/internal/manifest"
)

// Ledger records completed sweeps. *history.Store implements it.
type Ledger interface {
	Record(ctx context.Context, sw history.Sweep) error
	LatestByFingerprint(ctx context.Context, fingerprint string) (*history.Sweep, error)
}

// Runner executes sweeps. The zero value runs the default analyzers with
// logging discarded and no history.
type Runner struct {
	// Analyzers overrides the default analyzer list when non-nil.
	Analyzers func(p Params) []analyzer.Analyzer
	Logger    *slog.Logger
	Events    *logging.EventLog
	Ledger    Ledger
}

// Summary describes a completed sweep.
type Summary struct {
	SweepID        string        `json:"sweep_id"`
	Overview       Overview      `json:"-"`
	Runs           int           `json:"runs"`
	Out            string        `json:"out"`
	ManifestPath   string        `json:"manifest_path"`
	OverviewDigest string        `json:"overview_sha256"`
	ArchivePath    string        `json:"archive_path,omitempty"`
	Drift          []int         `json:"drift,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

func (r *Runner) logger() *slog.Logger {
	return logging.OrDiscard(r.Logger)
}

func (r *Runner) analyzers(p Params) []analyzer.Analyzer {
	var list []analyzer.Analyzer
	if r.Analyzers != nil {
		list = r.Analyzers(p)
	} else {
		list = analyzer.Default(p.Thresholds)
	}
	return analyzer.WithTiming(list, r.logger())
}

// Run executes the full sweep described by p: every run, then the overview
// and manifest, then the optional archive, then the history record.
//
// A failed run fails the sweep before overview.json or manifest.json is
// written; artifacts of runs that did complete are left in place. History
// errors are logged and do not fail a sweep whose bundle is already on disk.
func (r *Runner) Run(ctx context.Context, p Params) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	id := uuid.NewString()
	log := r.logger().With("sweep_id", id)
	defer logging.Track(log, slog.LevelDebug, "sweep")()

	r.Events.Log("sweep_started", map[string]any{
		"sweep_id":   id,
		"runs":       p.Runs,
		"thresholds": p.Thresholds,
		"seed_base":  p.SeedBase,
		"workers":    p.WorkerCount(),
		"out":        p.Out,
	})

	if err := os.MkdirAll(p.Out, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	log.Info("sweep started", "runs", p.Runs, "workers", p.WorkerCount(), "out", p.Out)

	overview, err := r.Schedule(ctx, p)
	if err != nil {
		r.Events.Log("sweep_failed", map[string]any{"sweep_id": id, "error": err.Error()})
		return nil, err
	}

	m, err := manifest.Write(p.Out, overview, manifest.Meta{
		Runs:       p.Runs,
		Thresholds: p.Thresholds,
		SeedBase:   p.SeedBase,
	})
	if err != nil {
		r.Events.Log("sweep_failed", map[string]any{"sweep_id": id, "error": err.Error()})
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	summary := &Summary{
		SweepID:        id,
		Overview:       overview,
		Runs:           p.Runs,
		Out:            p.Out,
		ManifestPath:   filepath.Join(p.Out, manifest.ManifestFile),
		OverviewDigest: m.OverviewSHA256,
	}

	if p.Archive {
		path, err := logging.Timed(log, "archive", func() (string, error) {
			return archive.Write(ctx, p.Out, p.ArchiveFormat)
		})
		if err != nil {
			r.Events.Log("sweep_failed", map[string]any{"sweep_id": id, "error": err.Error()})
			return nil, fmt.Errorf("writing archive: %w", err)
		}
		summary.ArchivePath = path
	}

	summary.Duration = time.Since(start)

	if r.Ledger != nil {
		summary.Drift = r.record(ctx, log, p, summary, start)
	}

	r.Events.Log("sweep_finished", map[string]any{
		"sweep_id":        id,
		"overview_sha256": m.OverviewSHA256,
		"archive":         summary.ArchivePath,
		"duration_ms":     summary.Duration.Milliseconds(),
	})
	log.Info("sweep finished", "overview_sha256", m.OverviewSHA256, "duration", summary.Duration)

	return summary, nil
}

// record stores the sweep in the ledger and returns the run ids whose dataset
// digests drifted from the last sweep with the same fingerprint.
func (r *Runner) record(ctx context.Context, log *slog.Logger, p Params, s *Summary, start time.Time) []int {
	fp := p.Fingerprint()

	prev, err := r.Ledger.LatestByFingerprint(ctx, fp)
	if err != nil {
		log.Warn("history lookup failed", "error", err)
	}

	cur := history.Sweep{
		ID:             s.SweepID,
		Fingerprint:    fp,
		StartedAt:      start,
		FinishedAt:     start.Add(s.Duration),
		Runs:           p.Runs,
		Thresholds:     p.Thresholds,
		SeedBase:       p.SeedBase,
		Workers:        p.WorkerCount(),
		OutDir:         absOrSelf(p.Out),
		OverviewSHA256: s.OverviewDigest,
		ArchivePath:    s.ArchivePath,
	}
	for _, rr := range s.Overview {
		cur.Digests = append(cur.Digests, history.RunDigest{
			RunID:    rr.RunID,
			Artifact: dataset.FileName,
			SHA256:   rr.Hashes[dataset.FileName],
		})
	}

	if err := r.Ledger.Record(ctx, cur); err != nil {
		log.Warn("history record failed", "error", err)
	}

	drift := history.Drift(prev, &cur)
	if len(drift) > 0 {
		log.Warn("reproducibility drift against previous sweep",
			"previous_sweep", prev.ID, "runs", drift)
		r.Events.Log("sweep_drift", map[string]any{
			"sweep_id": s.SweepID, "previous_sweep": prev.ID, "runs": drift,
		})
	}
	return drift
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
