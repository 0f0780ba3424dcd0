// Package distributed fans a run across a translation unit's functions
// concurrently: each function's intra-procedural fixpoint is
// independent of every other (spec §5 has no shared mutable state
// across functions, only within one function's managers), so they can
// run in a bounded worker pool. It borrows its per-job identification
// scheme and its progress fan-out shape from the teacher's own network
// package (internal/network/websocket_server.go's WebSocketBroadcast),
// adapted from broadcasting chat messages to broadcasting analysis
// progress to remote observers.
package distributed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"knight/internal/cfg"
)

// AnalyzeFunc runs one function's analysis to a Summary. Kept generic
// over fixpoint.Result (carried in Value) so this package does not
// need to import the fixpoint package.
type AnalyzeFunc func(ctx context.Context, fn *cfg.Function) (any, error)

// Job is one function queued for analysis, tagged with a unique id so
// progress events can be correlated back to their function even when
// several run concurrently.
type Job struct {
	ID uuid.UUID
	Fn *cfg.Function
}

// Summary is one function's analysis outcome.
type Summary struct {
	JobID        uuid.UUID
	FunctionName string
	Value        any
	Err          error
}

// Pool runs a bounded number of Jobs concurrently.
type Pool struct {
	concurrency int
	observer    *Coordinator
}

// New builds a Pool that runs at most concurrency jobs at once,
// reporting progress to observer if non-nil. concurrency <= 0 means
// unbounded.
func New(concurrency int, observer *Coordinator) *Pool {
	return &Pool{concurrency: concurrency, observer: observer}
}

// AnalyzeAll runs analyze over every function in fns, returning one
// Summary per function in input order. A per-job failure is captured
// on its own Summary rather than aborting the group: one function's
// analysis failing must not cancel the others' runs.
func (p *Pool) AnalyzeAll(ctx context.Context, fns []*cfg.Function, analyze AnalyzeFunc) []Summary {
	results := make([]Summary, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	limit := p.concurrency
	if limit <= 0 {
		limit = -1
	}
	g.SetLimit(limit)

	for i, fn := range fns {
		i, fn := i, fn
		job := Job{ID: uuid.New(), Fn: fn}
		g.Go(func() error {
			if p.observer != nil {
				p.observer.BroadcastProgress(job.ID, fmt.Sprintf("analyzing %s", fn.Name))
			}
			value, err := analyze(gctx, fn)
			results[i] = Summary{JobID: job.ID, FunctionName: fn.Name, Value: value, Err: err}
			if p.observer != nil {
				p.observer.BroadcastProgress(job.ID, fmt.Sprintf("done %s", fn.Name))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
