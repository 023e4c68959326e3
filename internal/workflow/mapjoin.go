package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MapJoin applies fn to every item with at most limit calls in flight and
// returns the results in input order. Siblings are not cancelled when one
// fails: every call completes and the first error is returned. A limit of
// zero or less means unbounded.
func MapJoin[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
