package fixpoint

import (
	"testing"

	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/domain"
	"knight/internal/engineconfig"
	"knight/internal/event"
	"knight/internal/interval"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/resolver"
	"knight/internal/state"
	"knight/internal/symbol"
)

func intType() region.ValueType { return region.ValueType{Name: "int", IsInt: true, BitWidth: 32} }

type harness struct {
	res    *resolver.Resolver
	rm     *region.Manager
	sm     *symbol.Manager
	frame  *region.StackFrame
	stateM *state.Manager
	fresh  *state.FreshDefSource
}

func newHarness() *harness {
	rm := region.NewManager()
	sm := symbol.NewManager()
	bus := event.NewBus()
	event.RegisterNumericalDomain(bus, domain.IntervalID)
	return &harness{
		res:    resolver.New(rm, sm, bus),
		rm:     rm,
		sm:     sm,
		frame:  &region.StackFrame{ID: 1, Function: "f"},
		stateM: state.NewManager(),
		fresh:  state.NewFreshDefSource(sm),
	}
}

func litExpr(id uint64, n int64) *cfg.Expr {
	return &cfg.Expr{ID: id, Kind: cfg.IntLiteral, Type: intType(), Lit: bigint.FromInt64(n)}
}

func declRefExpr(id uint64, decl region.Decl) *cfg.Expr {
	return &cfg.Expr{ID: id, Kind: cfg.DeclRef, Type: intType(), Decl: decl}
}

func assignStmt(id uint64, decl region.Decl, rhs *cfg.Expr) *cfg.Stmt {
	return &cfg.Stmt{ID: id, Kind: cfg.ExprStmt, Expr: &cfg.Expr{
		ID: id, Kind: cfg.Binary, Type: intType(), Op: symbol.OpAssign,
		LHS: declRefExpr(id, decl), RHS: rhs,
	}}
}

func (h *harness) projectDecl(t *testing.T, s *state.State, decl region.Decl) interval.Interval {
	t.Helper()
	reg := h.rm.Var(decl, h.frame)
	def, ok := s.RegionDef(reg, h.frame)
	if !ok {
		t.Fatal("expected a region def bound for the variable")
	}
	d, ok := s.Domain(domain.IntervalID)
	if !ok {
		t.Fatal("expected the interval domain to be tracked")
	}
	return d.(domain.Numerical).Project(linear.Var(def.ID()))
}

// Non-loop diamond: x declared 5 on entry, set to 10 on the then
// branch, left alone on the else branch; the exit's in-state must
// join both paths' bindings for x.
func TestIteratorJoinsDiamond(t *testing.T) {
	h := newHarness()
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}

	entry := &cfg.BasicBlock{
		ID:             0,
		Stmts:          []*cfg.Stmt{{ID: 1, Kind: cfg.DeclStmt, Decl: &region.Decl{ID: 1, Name: "x", Type: intType()}, Init: litExpr(2, 5)}},
		TerminatorCond: litExpr(3, 1),
		Successors:     []cfg.BlockID{1, 2},
	}
	then := &cfg.BasicBlock{ID: 1, Stmts: []*cfg.Stmt{assignStmt(4, decl, litExpr(5, 10))}, Successors: []cfg.BlockID{3}}
	els := &cfg.BasicBlock{ID: 2, Successors: []cfg.BlockID{3}}
	exit := &cfg.BasicBlock{ID: 3}

	f := &cfg.Function{
		Name: "f", Frame: h.frame, Entry: 0, Exit: 3,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: entry, 1: then, 2: els, 3: exit},
	}

	it := NewIterator(f, h.res, h.stateM, h.fresh, engineconfig.Default(), nil)
	result := it.Run(h.stateM.Empty())

	if result.MayBeUnsound {
		t.Fatal("unexpected cancellation")
	}
	got := h.projectDecl(t, result.Summary, decl)
	want := interval.FromFinite(5, 10)
	if !got.Equal(want) {
		t.Errorf("x at exit = %s, want %s", got.String(), want.String())
	}
}

// x = 0; while (x < 3) { x = x + 1; } must converge to [0,3] at the
// loop head via widen-then-narrow, and the exit (the loop's false
// branch) must observe the narrowed singleton 3.
func TestIteratorStabilizesLoop(t *testing.T) {
	h := newHarness()
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}

	entry := &cfg.BasicBlock{
		ID:         0,
		Stmts:      []*cfg.Stmt{{ID: 1, Kind: cfg.DeclStmt, Decl: &region.Decl{ID: 1, Name: "x", Type: intType()}, Init: litExpr(2, 0)}},
		Successors: []cfg.BlockID{1},
	}
	head := &cfg.BasicBlock{
		ID: 1,
		TerminatorCond: &cfg.Expr{ID: 3, Kind: cfg.Binary, Type: intType(), Op: symbol.OpLt,
			LHS: declRefExpr(4, decl), RHS: litExpr(5, 3)},
		Successors: []cfg.BlockID{2, 3},
	}
	body := &cfg.BasicBlock{ID: 2, Stmts: []*cfg.Stmt{assignStmt(6, decl, &cfg.Expr{
		ID: 7, Kind: cfg.Binary, Type: intType(), Op: symbol.OpAdd, LHS: declRefExpr(8, decl), RHS: litExpr(9, 1),
	})}, Successors: []cfg.BlockID{1}}
	exit := &cfg.BasicBlock{ID: 3}

	f := &cfg.Function{
		Name: "f", Frame: h.frame, Entry: 0, Exit: 3,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: entry, 1: head, 2: body, 3: exit},
	}

	it := NewIterator(f, h.res, h.stateM, h.fresh, engineconfig.Default(), nil)
	result := it.Run(h.stateM.Empty())

	if result.MayBeUnsound {
		t.Fatal("unexpected cancellation")
	}

	headIn, ok := result.In[1]
	if !ok {
		t.Fatal("expected an in-state for the loop head")
	}
	gotHead := h.projectDecl(t, headIn, decl)
	wantHead := interval.FromFinite(0, 3)
	if !gotHead.Equal(wantHead) {
		t.Errorf("x at loop head = %s, want %s", gotHead.String(), wantHead.String())
	}

	gotExit := h.projectDecl(t, result.Summary, decl)
	wantExit := interval.Singleton(bigint.FromInt64(3))
	if !gotExit.Equal(wantExit) {
		t.Errorf("x at exit = %s, want %s", gotExit.String(), wantExit.String())
	}
}

// A cancelled run still returns a result, flagged as possibly unsound,
// rather than panicking or hanging (spec §5's cooperative cancel).
func TestIteratorCancellationMarksUnsound(t *testing.T) {
	h := newHarness()
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}

	entry := &cfg.BasicBlock{
		ID:         0,
		Stmts:      []*cfg.Stmt{{ID: 1, Kind: cfg.DeclStmt, Decl: &region.Decl{ID: 1, Name: "x", Type: intType()}, Init: litExpr(2, 0)}},
		Successors: []cfg.BlockID{1},
	}
	head := &cfg.BasicBlock{
		ID: 1,
		TerminatorCond: &cfg.Expr{ID: 3, Kind: cfg.Binary, Type: intType(), Op: symbol.OpLt,
			LHS: declRefExpr(4, decl), RHS: litExpr(5, 3)},
		Successors: []cfg.BlockID{2, 3},
	}
	body := &cfg.BasicBlock{ID: 2, Stmts: []*cfg.Stmt{assignStmt(6, decl, &cfg.Expr{
		ID: 7, Kind: cfg.Binary, Type: intType(), Op: symbol.OpAdd, LHS: declRefExpr(8, decl), RHS: litExpr(9, 1),
	})}, Successors: []cfg.BlockID{1}}
	exit := &cfg.BasicBlock{ID: 3}

	f := &cfg.Function{
		Name: "f", Frame: h.frame, Entry: 0, Exit: 3,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: entry, 1: head, 2: body, 3: exit},
	}

	calls := 0
	cancel := func() bool {
		calls++
		return calls > 1
	}

	it := NewIterator(f, h.res, h.stateM, h.fresh, engineconfig.Default(), cancel)
	result := it.Run(h.stateM.Empty())

	if !result.MayBeUnsound {
		t.Error("expected a cancelled run to be flagged as possibly unsound")
	}
}
