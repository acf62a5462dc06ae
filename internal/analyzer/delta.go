package analyzer

import (
	"context"
	"math"
	"path/filepath"
	"slices"

	"github.com/nvandessel/echonull/internal/seeded"
)

// Lognormal parameters of the synthetic deltas.
const (
	deltaCount = 50
	deltaMu    = -8.0
	deltaSigma = 1.5
)

// DeltaStatsResult summarizes the absolute deltas of one run.
type DeltaStatsResult struct {
	NDeltas int     `json:"n_deltas"`
	AbsP50  float64 `json:"abs_p50"`
	AbsP90  float64 `json:"abs_p90"`
	AbsP99  float64 `json:"abs_p99"`
	MAD     float64 `json:"mad"`
	Max     float64 `json:"max"`
}

// DeltaStats draws small heavy-tailed deltas and reports their spread.
type DeltaStats struct{}

func (DeltaStats) Name() string { return "delta_stats" }

func (d DeltaStats) Analyze(ctx context.Context, _ int, seed int64, _ any, outDir string) (Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := seeded.New(seed, "delta_stats")
	deltas := make([]float64, deltaCount)
	for i := range deltas {
		deltas[i] = math.Abs(math.Exp(deltaMu + deltaSigma*rng.NormFloat64()))
	}
	slices.Sort(deltas)

	med := percentile(deltas, 50)
	dev := make([]float64, len(deltas))
	for i, v := range deltas {
		dev[i] = math.Abs(v - med)
	}
	slices.Sort(dev)

	stats := DeltaStatsResult{
		NDeltas: len(deltas),
		AbsP50:  med,
		AbsP90:  percentile(deltas, 90),
		AbsP99:  percentile(deltas, 99),
		MAD:     percentile(dev, 50),
		Max:     deltas[len(deltas)-1],
	}

	if err := writeJSON(filepath.Join(outDir, "delta_stats", "stats.json"), stats); err != nil {
		return nil, err
	}
	return Section{{Key: d.Name(), Value: stats}}, nil
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
