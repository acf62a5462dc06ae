package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/echonull/internal/analyzer"
	"github.com/nvandessel/echonull/internal/dataset"
	"github.com/nvandessel/echonull/internal/hashing"
	"github.com/nvandessel/echonull/internal/logging"
)

// ErrDuplicateSection is returned when two analyzers of one run produce the
// same top-level section key.
var ErrDuplicateSection = errors.New("duplicate result section")

// RunResult is the outcome of one run.
type RunResult struct {
	RunID   int               `json:"run_id"`
	Results analyzer.Section  `json:"results"`
	Hashes  map[string]string `json:"hashes"`
}

// Overview is the ordered list of run results, ascending by RunID.
type Overview []RunResult

// RunError ties a run failure to its run id.
type RunError struct {
	RunID int
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %d: %v", e.RunID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ExecuteRun performs run runID: it generates the dataset, invokes every
// analyzer in order against the run directory, merges their sections and
// hashes the dataset. It writes only beneath <Out>/run_NNNN.
func (r *Runner) ExecuteRun(ctx context.Context, runID int, p Params) (RunResult, error) {
	return logging.Timed(r.logger(), fmt.Sprintf("run %d", runID), func() (RunResult, error) {
		return r.executeRun(ctx, runID, p)
	})
}

func (r *Runner) executeRun(ctx context.Context, runID int, p Params) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}

	seed := p.Seed(runID)
	runDir := filepath.Join(p.Out, RunDirName(runID))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return RunResult{}, fmt.Errorf("creating run directory: %w", err)
	}

	frame := dataset.Generate(seed, p.Rows, p.Cols)
	csvPath := filepath.Join(runDir, dataset.FileName)
	if err := frame.WriteCSV(csvPath); err != nil {
		return RunResult{}, fmt.Errorf("writing dataset: %w", err)
	}
	if p.ArrowExport {
		if err := frame.WriteArrow(filepath.Join(runDir, dataset.ArrowFileName)); err != nil {
			return RunResult{}, fmt.Errorf("writing arrow dataset: %w", err)
		}
	}

	results := analyzer.Section{}
	for _, a := range r.analyzers(p) {
		part, err := a.Analyze(ctx, runID, seed, nil, runDir)
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: %w", a.Name(), err)
		}
		for _, e := range part {
			if _, exists := results.Get(e.Key); exists {
				return RunResult{}, fmt.Errorf("%w: %q from %s", ErrDuplicateSection, e.Key, a.Name())
			}
			results = append(results, e)
		}
	}

	digest, err := hashing.File(csvPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("hashing dataset: %w", err)
	}

	return RunResult{
		RunID:   runID,
		Results: results,
		Hashes:  map[string]string{dataset.FileName: digest},
	}, nil
}
