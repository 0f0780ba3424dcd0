package engine

import (
	"context"
	"testing"

	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/fixpoint"
	"knight/internal/region"
)

func straightLineFn(name string) *cfg.Function {
	frame := &region.StackFrame{ID: 1, Function: name}
	decl := region.Decl{ID: 1, Name: "x", Type: region.ValueType{Name: "int", IsInt: true, BitWidth: 32}}
	entry := &cfg.BasicBlock{
		ID: 0,
		Stmts: []*cfg.Stmt{{
			ID: 1, Kind: cfg.DeclStmt, Decl: &decl,
			Init: &cfg.Expr{ID: 2, Kind: cfg.IntLiteral, Type: decl.Type, Lit: bigint.FromInt64(0)},
		}},
	}
	return &cfg.Function{Name: name, Frame: frame, Entry: 0, Exit: 0,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: entry}}
}

func TestRunProducesOneSummaryPerFunction(t *testing.T) {
	e := New()
	fns := []*cfg.Function{straightLineFn("f"), straightLineFn("g")}

	result := e.Run(context.Background(), fns)

	if len(result.Summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(result.Summaries))
	}
	for i, sm := range result.Summaries {
		if sm.Err != nil {
			t.Errorf("summaries[%d] returned error %v", i, sm.Err)
		}
		if _, ok := sm.Value.(fixpoint.Result); !ok {
			t.Errorf("summaries[%d].Value = %T, want fixpoint.Result", i, sm.Value)
		}
	}
}
