package fetch

import (
	"context"
	"sync"
	"time"

	"optionflow/logger"
)

// Result carries one symbol's outcome from a batched run. A failed symbol
// keeps its slot with the zero Value and a non-nil Err, so output length and
// order always mirror the input.
type Result[T any] struct {
	Symbol string
	Value  T
	Err    error
}

// Failed reports whether the symbol's operation returned an error.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Plan shapes a batched run: how many symbols fetch concurrently and how
// long to pause between consecutive groups to stay under upstream rate
// limits.
type Plan struct {
	BatchSize       int
	InterBatchDelay time.Duration
}

// All drives op for every symbol through consecutive groups of
// plan.BatchSize. Within a group every symbol runs concurrently and the
// group joins before the next one starts; between groups (not after the
// last) the run pauses for plan.InterBatchDelay. A symbol's failure is
// logged and recorded in its slot, never aborting the group or the run.
// Cancelling ctx marks all remaining symbols with the context error.
func All[T any](ctx context.Context, symbols []string, plan Plan, op func(context.Context, string) (T, error)) []Result[T] {
	log := logger.GetLogger().WithComponent("fetcher")

	batchSize := plan.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	results := make([]Result[T], len(symbols))
	for i := range symbols {
		results[i].Symbol = symbols[i]
	}

	batches := (len(symbols) + batchSize - 1) / batchSize

	for start := 0; start < len(symbols); start += batchSize {
		if err := ctx.Err(); err != nil {
			for i := start; i < len(symbols); i++ {
				results[i].Err = err
			}
			return results
		}

		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		log.WithFields(logger.Fields{
			"batch":   start/batchSize + 1,
			"batches": batches,
			"symbols": symbols[start:end],
		}).Debug("processing batch")

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				value, err := op(ctx, symbols[idx])
				if err != nil {
					log.WithError(err).WithFields(logger.Fields{
						"symbol": symbols[idx],
					}).Warn("symbol fetch failed, reporting empty result")
				}
				results[idx].Value = value
				results[idx].Err = err
			}(i)
		}
		wg.Wait()

		if end < len(symbols) && plan.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				for i := end; i < len(symbols); i++ {
					results[i].Err = ctx.Err()
				}
				return results
			case <-time.After(plan.InterBatchDelay):
			}
		}
	}

	return results
}

// Batches re-chunks a result slice into the consecutive groups a Plan
// produced, letting callers aggregate per batch (e.g. a per-batch top-K)
// after the run has settled.
func Batches[T any](results []Result[T], batchSize int) [][]Result[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	var out [][]Result[T]
	for start := 0; start < len(results); start += batchSize {
		end := start + batchSize
		if end > len(results) {
			end = len(results)
		}
		out = append(out, results[start:end])
	}
	return out
}
