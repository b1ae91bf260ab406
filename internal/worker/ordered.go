// Package worker runs independent batch items in parallel while keeping their
// results in input order.
package worker

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Options control a batch run.
type Options struct {
	// Workers bounds concurrency. Zero means GOMAXPROCS.
	Workers int

	// OnDone, when set, is called after each finished item with the running count.
	// Calls are serialized.
	OnDone func(done, total int)
}

// RunOrdered calls fn for every index in [0, n) and returns the results in
// index order. Each item writes only its own slot, so finished results are
// never disturbed by later failures. Items that have not started when ctx is
// cancelled are filled with skipped(i, ctx.Err()) instead.
func RunOrdered[T any](ctx context.Context, n int, opts Options, fn func(ctx context.Context, i int) T, skipped func(i int, err error) T) []T {
	results := make([]T, n)
	if n == 0 {
		return results
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(workers)

	finish := func() {
		if opts.OnDone == nil {
			return
		}
		mu.Lock()
		done++
		opts.OnDone(done, n)
		mu.Unlock()
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				results[j] = skipped(j, err)
			}
			break
		}

		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = skipped(i, err)
				return nil
			}
			results[i] = fn(ctx, i)
			finish()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
