package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// forEach calls fn for every index in [0, n) on at most workers goroutines.
// Each index is handled by exactly one goroutine; fn writes only to its own
// slot of a preallocated result slice.
func forEach(ctx context.Context, workers, n int, fn func(i int)) error {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "pipeline: workers")
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: cancelled")
	}
	return nil
}
