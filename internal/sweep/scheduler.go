package sweep

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Schedule executes runs 1..p.Runs with at most p.WorkerCount() in flight and
// returns their results ordered by run id, whatever order they finished in.
//
// The first failing run cancels the group; runs that have not started yet
// return without touching the filesystem, and results of runs already in
// flight are discarded.
func (r *Runner) Schedule(ctx context.Context, p Params) (Overview, error) {
	results := make(Overview, p.Runs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.WorkerCount())

	for id := 1; id <= p.Runs; id++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.ExecuteRun(gctx, id, p)
			if err != nil {
				r.logger().Debug("run failed", "run_id", id, "error", err)
				return &RunError{RunID: id, Err: err}
			}
			results[id-1] = res
			r.logger().Debug("run complete", "run_id", id)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
