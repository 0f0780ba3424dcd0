package query

import (
	"testing"

	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/domain"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/state"
	"knight/internal/symbol"
)

func intType() region.ValueType { return region.ValueType{Name: "int", IsInt: true, BitWidth: 32} }

func TestGetRegionForDeclAndRegionDef(t *testing.T) {
	rm := region.NewManager()
	sm := symbol.NewManager()
	frame := &region.StackFrame{ID: 1, Function: "f"}
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}

	stateMgr := state.NewManager()
	reg := rm.Var(decl, frame)
	def := sm.ScalarInt(bigint.FromInt64(5), intType())
	s := stateMgr.Empty().WithRegionDef(reg, frame, def)

	q := New(s, rm, frame, nil)

	gotReg, ok := q.GetRegionForDecl(decl)
	if !ok || gotReg != reg {
		t.Fatalf("GetRegionForDecl = %v, %v; want %v, true", gotReg, ok, reg)
	}

	gotDef, ok := q.GetRegionDef(gotReg)
	if !ok || gotDef != def {
		t.Fatalf("GetRegionDef = %v, %v; want %v, true", gotDef, ok, def)
	}
}

func TestTryGetZVariableRequiresIntDecl(t *testing.T) {
	rm := region.NewManager()
	sm := symbol.NewManager()
	frame := &region.StackFrame{ID: 1, Function: "f"}
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}
	nonInt := region.Decl{ID: 2, Name: "s", Type: region.ValueType{Name: "struct S"}}

	stateMgr := state.NewManager()
	reg := rm.Var(decl, frame)
	def := sm.ScalarInt(bigint.FromInt64(5), intType())
	s := stateMgr.Empty().WithRegionDef(reg, frame, def)

	q := New(s, rm, frame, nil)

	v, ok := q.TryGetZVariable(decl)
	if !ok || v != linear.Var(def.ID()) {
		t.Fatalf("TryGetZVariable(x) = %v, %v; want %v, true", v, ok, linear.Var(def.ID()))
	}

	if _, ok := q.TryGetZVariable(nonInt); ok {
		t.Error("expected TryGetZVariable to fail for a non-integer decl")
	}

	unbound := region.Decl{ID: 3, Name: "y", Type: intType()}
	if _, ok := q.TryGetZVariable(unbound); ok {
		t.Error("expected TryGetZVariable to fail for a decl with no bound region def")
	}
}

func TestGetStmtSexprPrefersRegionDefOverCache(t *testing.T) {
	rm := region.NewManager()
	sm := symbol.NewManager()
	frame := &region.StackFrame{ID: 1, Function: "f"}
	decl := region.Decl{ID: 1, Name: "x", Type: intType()}

	stateMgr := state.NewManager()
	reg := rm.Var(decl, frame)
	def := sm.ScalarInt(bigint.FromInt64(7), intType())
	stmt := &cfg.Stmt{ID: 1, Kind: cfg.ExprStmt, Expr: &cfg.Expr{ID: 2, Kind: cfg.DeclRef, Type: intType(), Decl: decl}}

	s := stateMgr.Empty().WithRegionDef(reg, frame, def)
	q := New(s, rm, frame, nil)

	got, ok := q.GetStmtSexpr(stmt)
	if !ok || got != def {
		t.Fatalf("GetStmtSexpr = %v, %v; want %v, true", got, ok, def)
	}
}

func TestGetDomAndSetDomRoundTrip(t *testing.T) {
	rm := region.NewManager()
	frame := &region.StackFrame{ID: 1, Function: "f"}
	stateMgr := state.NewManager()

	iv := domain.NewIntervalDomain()
	s := stateMgr.Empty().WithDomain(domain.IntervalID, iv)
	q := New(s, rm, frame, nil)

	got, ok := GetDom[*domain.IntervalDomain](q, domain.IntervalID)
	if !ok || got != iv {
		t.Fatalf("GetDom = %v, %v; want %v, true", got, ok, iv)
	}

	if _, ok := GetDom[*domain.DiscreteSet](q, domain.IntervalID); ok {
		t.Error("expected GetDom to fail when asked for the wrong concrete type")
	}

	other := domain.NewIntervalDomain()
	q2 := SetDom[*domain.IntervalDomain](q, domain.IntervalID, other)
	got2, ok := GetDom[*domain.IntervalDomain](q2, domain.IntervalID)
	if !ok || got2 != other {
		t.Fatalf("SetDom/GetDom = %v, %v; want %v, true", got2, ok, other)
	}
}
