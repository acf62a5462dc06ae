package analyzer

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/echonull/internal/seeded"
)

// MarkCountsResult is the mark_counts section payload.
type MarkCountsResult struct {
	MedianCount int `json:"median_count"`
}

// MarkCounts picks a mark count in [1, 4] for the run.
type MarkCounts struct{}

func (MarkCounts) Name() string { return "mark_counts" }

func (m MarkCounts) Analyze(ctx context.Context, _ int, seed int64, _ any, outDir string) (Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	count := seeded.New(seed, "mark_counts").IntN(4) + 1

	if err := writeFile(filepath.Join(outDir, "mark_counts", "count.txt"), []byte(strconv.Itoa(count))); err != nil {
		return nil, err
	}
	return Section{{Key: m.Name(), Value: MarkCountsResult{MedianCount: count}}}, nil
}
