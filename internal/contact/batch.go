package contact

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// ProgressFunc is called after each entity of a batch finishes. Calls are
// serialized.
type ProgressFunc func(done, total int, res *Result)

// ResolveAll resolves entities concurrently, never more than the configured
// concurrency at once. Each entity's waterfall stays sequential. A failure
// for one entity is recorded on its result and never stops the batch.
// Results are returned in input order.
func (r *Resolver) ResolveAll(ctx context.Context, entities []types.Entity, progress ProgressFunc) []*Result {
	results := make([]*Result, len(entities))

	var mu sync.Mutex
	finished := 0
	report := func(res *Result) {
		mu.Lock()
		defer mu.Unlock()
		finished++
		if progress != nil {
			progress(finished, len(entities), res)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)
	for i := range entities {
		e := &entities[i]
		if ctx.Err() != nil {
			results[i] = &Result{RecordKey: e.RecordKey, Domain: e.Domain, Outcome: OutcomeCancelled}
			report(results[i])
			continue
		}
		g.Go(func() error {
			res, err := r.Resolve(ctx, e)
			if err != nil {
				r.log.Warn("resolution failed", zap.String("record_key", e.RecordKey), zap.Error(err))
				res = &Result{RecordKey: e.RecordKey, Domain: e.Domain, Outcome: OutcomeNotFound, Error: err.Error()}
			}
			results[i] = res
			report(res)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
