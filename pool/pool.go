// Package pool runs independent per-file tasks with a concurrency limit.
//
// Every item runs to completion even when a sibling fails; failures are
// collected and returned together once all items have finished.
package pool

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Run calls fn for every item using at most limit goroutines.
// A limit <= 0 means one goroutine per item. Cancelling ctx stops new items
// from being started; items already running are not interrupted.
func Run[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) error {
	if limit <= 0 {
		limit = len(items)
	}
	if limit == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		result = multierror.Append(result, ctx.Err())
	}
	return result.ErrorOrNil()
}

// Errors unpacks an error returned by Run into its per-item failures.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	if merr, ok := err.(*multierror.Error); ok {
		return merr.WrappedErrors()
	}
	return []error{err}
}
