package executil

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunBatch fans parallelizable-but-light work items across the worker
// pool and collects results in input order. The first error cancels the
// remaining items.
func (s *Strategy) RunBatch(ctx context.Context, category string, items []Work) ([]any, error) {
	results := make([]any, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := s.pool.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.pool.Release(1)

			value, err := item(gctx)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
