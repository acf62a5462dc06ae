package sweep

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nvandessel/echonull/internal/archive"
	"github.com/nvandessel/echonull/internal/hashing"
)

// Params is the immutable description of one sweep invocation.
type Params struct {
	Runs       int
	Thresholds []float64
	Out        string
	SeedBase   int64
	Workers    int

	Archive       bool
	ArchiveFormat archive.Format

	// Dataset shape; non-positive values fall back to the dataset defaults.
	Rows int
	Cols int

	// ArrowExport also writes multi.arrow beside multi.csv.
	ArrowExport bool
}

// Validate rejects parameters no sweep can run with.
func (p Params) Validate() error {
	if p.Runs < 0 {
		return fmt.Errorf("runs must be >= 0, got %d", p.Runs)
	}
	if p.Out == "" {
		return fmt.Errorf("output directory is required")
	}
	for _, thr := range p.Thresholds {
		if math.IsNaN(thr) || math.IsInf(thr, 0) {
			return fmt.Errorf("threshold %v is not finite", thr)
		}
	}
	if p.Archive {
		if _, err := archive.ParseFormat(string(p.ArchiveFormat)); err != nil {
			return err
		}
	}
	return nil
}

// Seed returns the seed of runID.
func (p Params) Seed(runID int) int64 {
	return p.SeedBase + int64(runID)
}

// WorkerCount returns Workers clamped to at least 1.
func (p Params) WorkerCount() int {
	return max(1, p.Workers)
}

// RunDirName returns the directory name of runID, e.g. run_0007.
func RunDirName(runID int) string {
	return fmt.Sprintf("run_%04d", runID)
}

// Fingerprint digests the parameters that determine sweep content. Out and
// Workers are excluded: neither changes what a run produces.
func (p Params) Fingerprint() string {
	thresholds := p.Thresholds
	if thresholds == nil {
		thresholds = []float64{}
	}
	// Marshal only fails on NaN or Inf thresholds, which Validate rejects
	// before any sweep is fingerprinted.
	doc, _ := json.Marshal(struct {
		Runs       int       `json:"runs"`
		Thresholds []float64 `json:"thresholds"`
		SeedBase   int64     `json:"seed_base"`
		Rows       int       `json:"rows"`
		Cols       int       `json:"cols"`
	}{p.Runs, thresholds, p.SeedBase, p.Rows, p.Cols})
	return hashing.Bytes(doc)
}
