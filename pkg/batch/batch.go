// Package batch runs per-item work on a bounded pool of goroutines with
// progress reporting and cooperative cancellation.
//
// Cancellation is checked before each item starts. Items that already
// finished are kept; items that had not started are reported as skipped.
package batch

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Event reports the outcome of one item
type Event struct {
	Index   int
	Done    int
	Total   int
	Err     error
	Skipped bool
}

// ProgressFunc receives events one at a time, never concurrently.
type ProgressFunc func(Event)

// Summary describes a finished run
type Summary struct {
	Completed []int
	Failed    []int
	Skipped   []int
}

// Func processes item i.
type Func func(ctx context.Context, i int) error

// DefaultWorkers returns the pool size used when workers <= 0
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

// Run calls fn for every index in [0, total) using at most workers goroutines.
// Item errors do not stop the run; they are joined into the returned error.
// If ctx is cancelled the remaining items are skipped and the context error is
// included in the result.
func Run(ctx context.Context, total, workers int, fn Func, progress ProgressFunc) (Summary, error) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	var (
		mu      sync.Mutex
		summary Summary
		errs    []error
		done    int
	)
	report := func(i int, err error, skipped bool) {
		mu.Lock()
		defer mu.Unlock()
		done++
		switch {
		case skipped:
			summary.Skipped = append(summary.Skipped, i)
		case err != nil:
			summary.Failed = append(summary.Failed, i)
			errs = append(errs, err)
		default:
			summary.Completed = append(summary.Completed, i)
		}
		if progress != nil {
			progress(Event{Index: i, Done: done, Total: total, Err: err, Skipped: skipped})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			report(i, nil, true)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				report(i, nil, true)
				return nil
			}
			report(i, fn(ctx, i), false)
			return nil
		})
	}
	g.Wait()

	slices.Sort(summary.Completed)
	slices.Sort(summary.Failed)
	slices.Sort(summary.Skipped)

	if err := ctx.Err(); err != nil && len(summary.Skipped) > 0 {
		errs = append(errs, err)
	}
	return summary, errors.Join(errs...)
}
