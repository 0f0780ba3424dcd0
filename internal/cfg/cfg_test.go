package cfg

import "testing"

func buildIfElse() *Function {
	cond := &Expr{ID: 1, Kind: IntLiteral}
	entry := &BasicBlock{ID: 0, TerminatorCond: cond, Successors: []BlockID{1, 2}}
	thenBlk := &BasicBlock{ID: 1, Successors: []BlockID{3}}
	elseBlk := &BasicBlock{ID: 2, Successors: []BlockID{3}}
	exit := &BasicBlock{ID: 3}
	return &Function{
		Name:  "f",
		Entry: 0,
		Exit:  3,
		Blocks: map[BlockID]*BasicBlock{
			0: entry, 1: thenBlk, 2: elseBlk, 3: exit,
		},
	}
}

func TestThenElseOrdering(t *testing.T) {
	f := buildIfElse()
	entry, _ := f.Block(0)
	then, ok := entry.Then()
	if !ok || then != 1 {
		t.Fatalf("expected then-successor 1, got %v ok=%v", then, ok)
	}
	els, ok := entry.Else()
	if !ok || els != 2 {
		t.Fatalf("expected else-successor 2, got %v ok=%v", els, ok)
	}
}

func TestNonConditionalHasNoThenElse(t *testing.T) {
	f := buildIfElse()
	thenBlk, _ := f.Block(1)
	if _, ok := thenBlk.Then(); ok {
		t.Error("a block without a terminator condition should report no then-successor")
	}
}

func TestBlockLookupMiss(t *testing.T) {
	f := buildIfElse()
	if _, ok := f.Block(99); ok {
		t.Error("expected lookup of an unknown block id to fail")
	}
}
