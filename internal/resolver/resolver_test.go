package resolver

import (
	"testing"

	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/domain"
	"knight/internal/event"
	"knight/internal/interval"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/state"
	"knight/internal/symbol"
)

func intType() region.ValueType { return region.ValueType{Name: "int", IsInt: true, BitWidth: 32} }

type harness struct {
	r      *Resolver
	rm     *region.Manager
	sm     *symbol.Manager
	frame  *region.StackFrame
	stateM *state.Manager
}

func newHarness() *harness {
	rm := region.NewManager()
	sm := symbol.NewManager()
	bus := event.NewBus()
	event.RegisterNumericalDomain(bus, domain.IntervalID)
	return &harness{
		r:      New(rm, sm, bus),
		rm:     rm,
		sm:     sm,
		frame:  &region.StackFrame{ID: 1},
		stateM: state.NewManager(),
	}
}

func declStmt(id uint64, decl *region.Decl, init *cfg.Expr) *cfg.Stmt {
	return &cfg.Stmt{ID: id, Kind: cfg.DeclStmt, Decl: decl, Init: init}
}

func litExpr(id uint64, n int64) *cfg.Expr {
	return &cfg.Expr{ID: id, Kind: cfg.IntLiteral, Type: intType(), Lit: bigint.FromInt64(n)}
}

func declRefExpr(id uint64, decl region.Decl) *cfg.Expr {
	return &cfg.Expr{ID: id, Kind: cfg.DeclRef, Type: intType(), Decl: decl}
}

func projectInterval(t *testing.T, s *state.State, v linear.Var) interval.Interval {
	t.Helper()
	d, ok := s.Domain(domain.IntervalID)
	if !ok {
		t.Fatal("expected interval domain to be tracked")
	}
	return d.(domain.Numerical).Project(v)
}

func TestEvalDeclStmtLiteralInitBindsIntervalAndRegionDef(t *testing.T) {
	h := newHarness()
	decl := &region.Decl{ID: 1, Name: "x", Type: intType()}
	stmt := declStmt(1, decl, litExpr(1, 5))
	loc := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 0}

	next := h.r.EvalStmt(h.stateM.Empty(), stmt, h.frame, loc)

	reg := h.rm.Var(*decl, h.frame)
	def, ok := next.RegionDef(reg, h.frame)
	if !ok {
		t.Fatal("expected a region def bound for x")
	}
	got := projectInterval(t, next, linear.Var(def.ID()))
	want := interval.Singleton(bigint.FromInt64(5))
	if !got.Equal(want) {
		t.Errorf("x interval = %s, want %s", got.String(), want.String())
	}
}

func TestEvalDeclRefReusesExistingBinding(t *testing.T) {
	h := newHarness()
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}
	reg := h.rm.Var(decl, h.frame)
	loc := region.LocationContext{Frame: h.frame}
	def := h.sm.RegionSymVal(reg, loc, true)
	s := h.stateM.Empty().WithRegionDef(reg, h.frame, def)

	next, v := h.r.evalExpr(s, declRefExpr(1, decl), h.frame, loc)

	if v != def {
		t.Error("expected the already-bound region def to be returned unchanged")
	}
	if next != s {
		t.Error("resolving an already-bound DeclRef must not clone the state")
	}
}

func TestPlainAssignmentMintsFreshRegionDefAndRebindsInterval(t *testing.T) {
	h := newHarness()
	decl := &region.Decl{ID: 1, Name: "x", Type: intType()}
	loc1 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 0}
	first := h.r.EvalStmt(h.stateM.Empty(), declStmt(1, decl, litExpr(1, 5)), h.frame, loc1)

	reg := h.rm.Var(*decl, h.frame)
	oldDef, _ := first.RegionDef(reg, h.frame)

	loc2 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 1}
	assign := &cfg.Expr{ID: 2, Kind: cfg.Binary, Type: intType(), Op: symbol.OpAssign,
		LHS: declRefExpr(3, *decl), RHS: litExpr(4, 10)}
	second := h.r.EvalStmt(first, &cfg.Stmt{ID: 2, Kind: cfg.ExprStmt, Expr: assign}, h.frame, loc2)

	newDef, ok := second.RegionDef(reg, h.frame)
	if !ok {
		t.Fatal("expected x to still be bound after reassignment")
	}
	if newDef == oldDef {
		t.Error("expected a fresh region def to be minted on reassignment")
	}
	got := projectInterval(t, second, linear.Var(newDef.ID()))
	want := interval.Singleton(bigint.FromInt64(10))
	if !got.Equal(want) {
		t.Errorf("x interval after reassignment = %s, want %s", got.String(), want.String())
	}
}

func TestCompoundAssignAddsToExistingValue(t *testing.T) {
	h := newHarness()
	decl := &region.Decl{ID: 1, Name: "x", Type: intType()}
	loc1 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 0}
	first := h.r.EvalStmt(h.stateM.Empty(), declStmt(1, decl, litExpr(1, 5)), h.frame, loc1)

	loc2 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 1}
	assign := &cfg.Expr{ID: 2, Kind: cfg.Binary, Type: intType(), Op: symbol.OpAddAssign,
		LHS: declRefExpr(3, *decl), RHS: litExpr(4, 3)}
	second := h.r.EvalStmt(first, &cfg.Stmt{ID: 2, Kind: cfg.ExprStmt, Expr: assign}, h.frame, loc2)

	reg := h.rm.Var(*decl, h.frame)
	def, _ := second.RegionDef(reg, h.frame)
	got := projectInterval(t, second, linear.Var(def.ID()))
	want := interval.Singleton(bigint.FromInt64(8))
	if !got.Equal(want) {
		t.Errorf("x after += 3 = %s, want %s", got.String(), want.String())
	}

	if second.Constraints().Linear().Len() == 0 {
		t.Error("expected the compound assignment to record a linear equality constraint")
	}
}

func TestUnaryWrapsOperandWithoutDomainEffect(t *testing.T) {
	h := newHarness()
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}
	reg := h.rm.Var(decl, h.frame)
	loc := region.LocationContext{Frame: h.frame}
	def := h.sm.RegionSymVal(reg, loc, true)
	s := h.stateM.Empty().WithRegionDef(reg, h.frame, def)

	unary := &cfg.Expr{ID: 2, Kind: cfg.Unary, Type: intType(), UnaryOp: symbol.UnaryNeg, Operand: declRefExpr(1, decl)}
	next, v := h.r.evalExpr(s, unary, h.frame, loc)

	if next != s {
		t.Error("a bare unary expr should not mutate the state (no numerical event for Unary)")
	}
	if v.Kind() != symbol.Unary || v.UnaryOp() != symbol.UnaryNeg || v.Operand() != def {
		t.Error("expected a Unary S-expr wrapping the resolved operand")
	}
}

func TestBinaryConstantFoldingProducesInternedScalar(t *testing.T) {
	h := newHarness()
	loc := region.LocationContext{Frame: h.frame}
	add := &cfg.Expr{ID: 1, Kind: cfg.Binary, Type: intType(), Op: symbol.OpAdd, LHS: litExpr(2, 2), RHS: litExpr(3, 3)}

	_, v := h.r.evalExpr(h.stateM.Empty(), add, h.frame, loc)

	want := h.sm.ScalarInt(bigint.FromInt64(5), intType())
	if v != want {
		t.Error("expected constant folding to produce the same interned scalar as 2+3")
	}
}

func TestFilterConditionTrueBranchDetectsContradiction(t *testing.T) {
	h := newHarness()
	decl := &region.Decl{ID: 1, Name: "x", Type: intType()}
	loc1 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 0}
	s := h.r.EvalStmt(h.stateM.Empty(), declStmt(1, decl, litExpr(1, 50)), h.frame, loc1)

	loc2 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 1}
	cond := &cfg.Expr{ID: 2, Kind: cfg.Binary, Type: intType(), Op: symbol.OpLt,
		LHS: declRefExpr(3, *decl), RHS: litExpr(4, 10)}

	filtered := h.r.FilterCondition(s, cond, true, h.frame, loc2)
	if !filtered.IsBottom() {
		t.Error("expected x<10 to contradict x==50 and demote the state to bottom")
	}
}

func TestFilterConditionFalseBranchIsCompatible(t *testing.T) {
	h := newHarness()
	decl := &region.Decl{ID: 1, Name: "x", Type: intType()}
	loc1 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 0}
	s := h.r.EvalStmt(h.stateM.Empty(), declStmt(1, decl, litExpr(1, 50)), h.frame, loc1)

	loc2 := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 1}
	cond := &cfg.Expr{ID: 2, Kind: cfg.Binary, Type: intType(), Op: symbol.OpLt,
		LHS: declRefExpr(3, *decl), RHS: litExpr(4, 10)}

	filtered := h.r.FilterCondition(s, cond, false, h.frame, loc2)
	if filtered.IsBottom() {
		t.Fatal("x>=10 should be compatible with x==50")
	}

	reg := h.rm.Var(*decl, h.frame)
	def, _ := filtered.RegionDef(reg, h.frame)
	got := projectInterval(t, filtered, linear.Var(def.ID()))
	want := interval.Singleton(bigint.FromInt64(50))
	if !got.Equal(want) {
		t.Errorf("x after filtering the false branch = %s, want %s", got.String(), want.String())
	}
}

func TestCastWideningDispatchesAssignCast(t *testing.T) {
	h := newHarness()
	decl := &region.Decl{ID: 1, Name: "x", Type: region.ValueType{Name: "short", IsInt: true, BitWidth: 16}}
	loc := region.LocationContext{Frame: h.frame, BlockID: 1, StmtIdx: 0}
	s := h.r.EvalStmt(h.stateM.Empty(), declStmt(1, decl, &cfg.Expr{ID: 1, Kind: cfg.IntLiteral,
		Type: region.ValueType{Name: "short", IsInt: true, BitWidth: 16}, Lit: bigint.FromInt64(7)}), h.frame, loc)

	cast := &cfg.Expr{ID: 2, Kind: cfg.Cast, Type: intType(), Operand: declRefExpr(3, *decl)}
	next, v := h.r.evalExpr(s, cast, h.frame, loc)

	if v.Kind() != symbol.Cast {
		t.Fatal("expected a Cast S-expr")
	}
	got := projectInterval(t, next, linear.Var(v.ID()))
	want := interval.Singleton(bigint.FromInt64(7))
	if !got.Equal(want) {
		t.Errorf("widened cast interval = %s, want %s", got.String(), want.String())
	}
}
