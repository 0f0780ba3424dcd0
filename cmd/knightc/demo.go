package main

import (
	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/region"
	"knight/internal/symbol"
)

var intType = region.ValueType{Name: "int", IsInt: true, BitWidth: 32}

func litExpr(id uint64, n int64) *cfg.Expr {
	return &cfg.Expr{ID: id, Kind: cfg.IntLiteral, Type: intType, Lit: bigint.FromInt64(n)}
}

func declRefExpr(id uint64, decl region.Decl) *cfg.Expr {
	return &cfg.Expr{ID: id, Kind: cfg.DeclRef, Type: intType, Decl: decl}
}

func assignStmt(id uint64, decl region.Decl, rhs *cfg.Expr) *cfg.Stmt {
	return &cfg.Stmt{ID: id, Kind: cfg.ExprStmt, Expr: &cfg.Expr{
		ID: id, Kind: cfg.Binary, Type: intType, Op: symbol.OpAssign,
		LHS: declRefExpr(id, decl), RHS: rhs,
	}}
}

// countToThree builds `int x = 0; while (x < 3) x = x + 1;`, the same
// shape internal/fixpoint's own loop-stabilization test exercises, so
// a --dump-state run on the demo set shows the interval domain
// actually narrowing a loop variable to a point value at the exit.
func countToThree(frameID uint64) *cfg.Function {
	frame := &region.StackFrame{ID: frameID, Function: "count_to_three"}
	decl := region.Decl{ID: 1, Name: "x", Type: intType}

	entry := &cfg.BasicBlock{
		ID:         0,
		Stmts:      []*cfg.Stmt{{ID: 1, Kind: cfg.DeclStmt, Decl: &decl, Init: litExpr(2, 0)}},
		Successors: []cfg.BlockID{1},
	}
	head := &cfg.BasicBlock{
		ID: 1,
		TerminatorCond: &cfg.Expr{ID: 3, Kind: cfg.Binary, Type: intType, Op: symbol.OpLt,
			LHS: declRefExpr(4, decl), RHS: litExpr(5, 3)},
		Successors: []cfg.BlockID{2, 3},
	}
	body := &cfg.BasicBlock{
		ID: 2,
		Stmts: []*cfg.Stmt{assignStmt(6, decl, &cfg.Expr{
			ID: 7, Kind: cfg.Binary, Type: intType, Op: symbol.OpAdd, LHS: declRefExpr(8, decl), RHS: litExpr(9, 1),
		})},
		Successors: []cfg.BlockID{1},
	}
	exit := &cfg.BasicBlock{ID: 3}

	return &cfg.Function{
		Name: "count_to_three", Frame: frame, Entry: 0, Exit: 3,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: entry, 1: head, 2: body, 3: exit},
	}
}

// declareZero builds `int x = 0;`, a trivial straight-line function
// with no loop, for contrast against countToThree in the demo output.
func declareZero(frameID uint64) *cfg.Function {
	frame := &region.StackFrame{ID: frameID, Function: "declare_zero"}
	decl := region.Decl{ID: 1, Name: "x", Type: intType}
	entry := &cfg.BasicBlock{
		ID:    0,
		Stmts: []*cfg.Stmt{{ID: 1, Kind: cfg.DeclStmt, Decl: &decl, Init: litExpr(2, 0)}},
	}
	return &cfg.Function{
		Name: "declare_zero", Frame: frame, Entry: 0, Exit: 0,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: entry},
	}
}

func demoFunctions() []*cfg.Function {
	return []*cfg.Function{declareZero(1), countToThree(2)}
}
