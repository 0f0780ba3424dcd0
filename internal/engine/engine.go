// Package engine wires the leaf packages (region/symbol managers, the
// resolver, the event bus, the fixpoint iterator) into one analysis
// run over a translation unit's functions, the way knight's own
// AnalysisManager/tooling::Context own the per-run managers a checker
// pass is built against (analyzer/include/analyzer/tooling/factory.hpp,
// include/dfa/analysis_manager.hpp). Each call to Run is one session,
// tagged with a non-monotonic uuid distinct from the interning
// managers' own monotonic ids (spec §3.6, §3.9) so logs and trace rows
// from concurrent or repeated runs never collide.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"knight/internal/cfg"
	"knight/internal/distributed"
	"knight/internal/domain"
	"knight/internal/engineconfig"
	"knight/internal/errors"
	"knight/internal/event"
	"knight/internal/fixpoint"
	"knight/internal/region"
	"knight/internal/resolver"
	"knight/internal/state"
	"knight/internal/symbol"
	"knight/internal/trace"
)

// Engine owns the managers one analysis session is built over: a
// region manager, a symbol manager, a program-state manager, and the
// event bus numerical analyses register against.
type Engine struct {
	Regions *region.Manager
	Symbols *symbol.Manager
	States  *state.Manager
	Bus     *event.Bus
	Log     *errors.Logger

	budgets     engineconfig.Config
	concurrency int
	trace       *trace.Store
}

// Option configures an Engine at construction time as a functional
// option (engineconfig.Config itself stays a plain struct with no
// builder; this package's options exist because Engine composes
// several managers engineconfig alone doesn't own).
type Option func(*Engine)

// WithBudgets overrides the fixpoint iterator's default budgets.
func WithBudgets(c engineconfig.Config) Option { return func(e *Engine) { e.budgets = c } }

// WithConcurrency bounds how many functions distributed.Pool analyzes
// at once; <= 0 means unbounded.
func WithConcurrency(n int) Option { return func(e *Engine) { e.concurrency = n } }

// WithTrace attaches a trace.Store that Run records every function
// summary to.
func WithTrace(t *trace.Store) Option { return func(e *Engine) { e.trace = t } }

// WithLogger attaches the front-end-mismatch logger every leaf package
// that needs one will share.
func WithLogger(l *errors.Logger) Option { return func(e *Engine) { e.Log = l } }

// New builds an Engine with fresh, empty managers registered for the
// interval domain's assign/assumption events (spec §4.5's numerical
// analyses are listeners on the same bus every other domain shares).
func New(opts ...Option) *Engine {
	e := &Engine{
		Regions: region.NewManager(),
		Symbols: symbol.NewManager(),
		States:  state.NewManager(),
		Bus:     event.NewBus(),
		budgets: engineconfig.Default(),
	}
	event.RegisterNumericalDomain(e.Bus, domain.IntervalID)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is one session's outcome across every function analyzed.
type RunResult struct {
	SessionID uuid.UUID
	Summaries []distributed.Summary
}

// Run analyzes every function in fns, each starting from the empty
// (top) state, and returns one fixpoint.Result per function wrapped in
// distributed.Summary. Functions run concurrently through a
// distributed.Pool bounded by the engine's configured concurrency;
// each gets its own FreshDefSource since loop-head symbol minting is
// scoped per function (spec §4.4's disagreeing-region keying is only
// unique within one function's regions).
func (e *Engine) Run(ctx context.Context, fns []*cfg.Function) RunResult {
	sessionID := uuid.New()
	res := resolver.New(e.Regions, e.Symbols, e.Bus)

	pool := distributed.New(e.concurrency, nil)
	summaries := pool.AnalyzeAll(ctx, fns, func(ctx context.Context, fn *cfg.Function) (any, error) {
		fresh := state.NewFreshDefSource(e.Symbols)
		it := fixpoint.NewIterator(fn, res, e.States, fresh, e.budgets, cancelFromContext(ctx))
		return it.Run(e.States.Empty()), nil
	})

	if e.trace != nil {
		e.recordTrace(ctx, sessionID, summaries)
	}

	return RunResult{SessionID: sessionID, Summaries: summaries}
}

func (e *Engine) recordTrace(ctx context.Context, sessionID uuid.UUID, summaries []distributed.Summary) {
	runID, err := e.trace.BeginRun(ctx, sessionID.String(), time.Now().Unix())
	if err != nil {
		e.Log.Mismatch("engine", "failed to begin trace run", err)
		return
	}
	for _, sm := range summaries {
		result, ok := sm.Value.(fixpoint.Result)
		if !ok {
			continue
		}
		dump := result.Summary.Dump()
		if err := e.trace.RecordSummary(ctx, runID, sm.FunctionName, dump, result.MayBeUnsound); err != nil {
			e.Log.Mismatch("engine", "failed to record trace summary", err)
		}
	}
}

// cancelFromContext adapts ctx's cancellation into fixpoint.CancelFunc.
func cancelFromContext(ctx context.Context) fixpoint.CancelFunc {
	return func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
}
