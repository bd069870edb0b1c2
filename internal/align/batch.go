package align

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Example is one independent (scores, mask) pair in a batch.
type Example struct {
	Scores Matrix
	Mask   Mask
}

// Result is the outcome for the example at Index. Exactly one of Path and Err
// is set.
type Result struct {
	Index int
	Path  *Path
	Err   error
}

type BatchOptions struct {
	// Workers bounds concurrent solves. Zero means GOMAXPROCS.
	Workers int
}

// SolveBatch solves every example independently and returns results in input
// order. A failing example never affects its siblings. Examples not started
// before ctx is done report ctx.Err().
func SolveBatch(ctx context.Context, examples []Example, opts BatchOptions) []Result {
	results := make([]Result, len(examples))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range examples {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Path, results[i].Err = Solve(examples[i].Scores, examples[i].Mask)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Failed counts results carrying an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
