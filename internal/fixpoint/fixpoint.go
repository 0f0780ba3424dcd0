// The iterator itself follows spec §4.8's schedule: run each block's
// statements through the resolver as a transfer function, join states
// at control-flow merges, and stabilize loop heads with a bounded
// number of join-with-transfer rounds, then widening, then narrowing.
// It is grounded on knight's IntraProceduralFixpointIterator
// (src/dfa/engine/intraprocedural_fixpoint.cpp), which drives a
// WtoBasedFixPointIterator base class over the same three-phase
// stabilization strategy; that base class's own source is not in this
// pack, so the phase loop here is written directly from spec §4.8's
// description rather than transliterated from a header.
package fixpoint

import (
	"knight/internal/cfg"
	"knight/internal/engineconfig"
	"knight/internal/region"
	"knight/internal/resolver"
	"knight/internal/state"
)

// Result is one function's analysis summary (spec §4.8's "terminal:
// the exit node's in-state is the function summary").
type Result struct {
	Summary      *state.State
	In, Out      map[cfg.BlockID]*state.State
	MayBeUnsound bool
}

// CancelFunc is polled between blocks (spec §5's cooperative cancel
// flag); a nil CancelFunc means the run cannot be cancelled.
type CancelFunc func() bool

// Iterator drives one function's intra-procedural fixpoint.
type Iterator struct {
	fn       *cfg.Function
	wto      *Wto
	resolver *resolver.Resolver
	fresh    *state.FreshDefSource
	budgets  engineconfig.Config
	cancel   CancelFunc

	preds map[cfg.BlockID][]cfg.BlockID
	in    map[cfg.BlockID]*state.State
	out   map[cfg.BlockID]*state.State

	bottom  *state.State
	initial *state.State
}

// NewIterator builds the iterator for one function. fresh mints the
// region defs the state layer needs when a merge disagrees on a
// region's binding (spec §4.4's "fresh-region-def minting").
func NewIterator(fn *cfg.Function, res *resolver.Resolver, stateMgr *state.Manager, fresh *state.FreshDefSource, budgets engineconfig.Config, cancel CancelFunc) *Iterator {
	return &Iterator{
		fn:       fn,
		wto:      Build(fn),
		resolver: res,
		fresh:    fresh,
		budgets:  budgets,
		cancel:   cancel,
		preds:    predecessors(fn),
		in:       make(map[cfg.BlockID]*state.State),
		out:      make(map[cfg.BlockID]*state.State),
		bottom:   stateMgr.Bottom(),
	}
}

// predecessors inverts fn's successor edges.
func predecessors(fn *cfg.Function) map[cfg.BlockID][]cfg.BlockID {
	out := make(map[cfg.BlockID][]cfg.BlockID, len(fn.Blocks))
	for id, blk := range fn.Blocks {
		for _, succ := range blk.Successors {
			out[succ] = append(out[succ], id)
		}
	}
	return out
}

// Run iterates the function to a fixpoint starting from initial at
// the entry block, returning the exit node's in-state as the function
// summary (spec §4.8's terminal case).
func (it *Iterator) Run(initial *state.State) Result {
	it.initial = initial
	unsound := it.runSeq(it.wto.Elements())
	summary, ok := it.in[it.fn.Exit]
	if !ok {
		summary = it.bottom
	}
	return Result{Summary: summary, In: it.in, Out: it.out, MayBeUnsound: unsound}
}

func (it *Iterator) cancelled() bool {
	return it.cancel != nil && it.cancel()
}

// runSeq processes a WTO sequence in order, returning true if
// cancellation cut the run short.
func (it *Iterator) runSeq(elems []Element) bool {
	for _, e := range elems {
		if it.cancelled() {
			return true
		}
		if e.IsComponent() {
			if it.runComponent(e) {
				return true
			}
			continue
		}
		it.processVertex(e.Vertex)
	}
	return false
}

// processVertex computes a plain vertex's in-state as the join of its
// predecessors' out-states and runs the block's transfer function.
func (it *Iterator) processVertex(v cfg.BlockID) {
	in := it.joinPreds(v, false)
	it.in[v] = in
	it.out[v] = it.transferBlock(in, v)
}

// runComponent stabilizes a loop component per spec §4.8: join-with-
// transfer rounds up to WideningDelay, then widen_with until stable,
// then up to NarrowingIterations rounds of narrow_with to recover
// precision.
func (it *Iterator) runComponent(e Element) bool {
	head := e.Head
	round := 0
	for {
		if it.cancelled() {
			return true
		}
		prevIn := it.in[head]
		newIn := it.joinPreds(head, true)
		var in *state.State
		switch {
		case prevIn == nil:
			in = newIn
		case round < it.budgets.WideningDelay:
			in = prevIn.Join(newIn, it.fresh)
		default:
			if len(it.budgets.Thresholds) > 0 {
				in = prevIn.WidenWithThreshold(newIn, it.budgets.Thresholds, it.fresh)
			} else {
				in = prevIn.Widen(newIn, it.fresh)
			}
		}
		it.in[head] = in
		it.out[head] = it.transferBlock(in, head)
		if it.runSeq(e.Body) {
			return true
		}
		round++
		if prevIn != nil && in.Equals(prevIn) {
			break
		}
	}

	for i := 0; i < it.budgets.NarrowingIterations; i++ {
		if it.cancelled() {
			return true
		}
		prevIn := it.in[head]
		newIn := it.joinPreds(head, true)
		var narrowed *state.State
		if len(it.budgets.Thresholds) > 0 {
			narrowed = prevIn.NarrowWithThreshold(newIn, it.budgets.Thresholds, it.fresh)
		} else {
			narrowed = prevIn.Narrow(newIn, it.fresh)
		}
		it.in[head] = narrowed
		it.out[head] = it.transferBlock(narrowed, head)
		if it.runSeq(e.Body) {
			return true
		}
		if narrowed.Equals(prevIn) {
			break
		}
	}
	return false
}

// joinPreds joins every predecessor's out-state across its edge into
// v. atLoopHead distinguishes spec §4.8's join_at_loop_head from a
// plain sequential join; both reduce to State.Join in this
// implementation (the engine has no domain that currently keys
// special per-head history on the distinction, but the call site is
// kept separate so one can be added without touching the iterator).
func (it *Iterator) joinPreds(v cfg.BlockID, atLoopHead bool) *state.State {
	acc := it.bottom
	if v == it.fn.Entry {
		acc = it.initial
	}
	for _, p := range it.preds[v] {
		postP, ok := it.out[p]
		if !ok {
			continue
		}
		edgeState := it.transferEdge(p, v, postP)
		if atLoopHead {
			acc = joinAtLoopHead(acc, edgeState, it.fresh)
		} else {
			acc = acc.Join(edgeState, it.fresh)
		}
	}
	return acc
}

func joinAtLoopHead(a, b *state.State, fresh *state.FreshDefSource) *state.State {
	return a.Join(b, fresh)
}

// transferBlock runs a block's statements through the resolver in
// order, threading the state through each.
func (it *Iterator) transferBlock(in *state.State, id cfg.BlockID) *state.State {
	blk, ok := it.fn.Block(id)
	if !ok {
		return in
	}
	s := in
	for idx, stmt := range blk.Stmts {
		loc := region.LocationContext{Frame: it.fn.Frame, BlockID: uint64(id), StmtIdx: uint64(idx)}
		s = it.resolver.EvalStmt(s, stmt, it.fn.Frame, loc)
	}
	return s
}

// transferEdge applies branch-condition filtering across a
// conditional block's then/else edge (spec §4.8); non-conditional
// edges pass the state through unchanged.
func (it *Iterator) transferEdge(src, dst cfg.BlockID, srcOut *state.State) *state.State {
	blk, ok := it.fn.Block(src)
	if !ok || blk.TerminatorCond == nil {
		return srcOut
	}
	thenID, hasThen := blk.Then()
	elseID, hasElse := blk.Else()
	loc := region.LocationContext{Frame: it.fn.Frame, BlockID: uint64(src), StmtIdx: uint64(len(blk.Stmts))}
	switch {
	case hasThen && dst == thenID:
		return it.resolver.FilterCondition(srcOut, blk.TerminatorCond, true, it.fn.Frame, loc)
	case hasElse && dst == elseID:
		return it.resolver.FilterCondition(srcOut, blk.TerminatorCond, false, it.fn.Frame, loc)
	default:
		return srcOut
	}
}
