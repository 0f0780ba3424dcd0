package fixpoint

import (
	"testing"

	"knight/internal/cfg"
)

func block(id cfg.BlockID, succs ...cfg.BlockID) *cfg.BasicBlock {
	return &cfg.BasicBlock{ID: id, Successors: succs}
}

func fn(entry, exit cfg.BlockID, blocks ...*cfg.BasicBlock) *cfg.Function {
	m := make(map[cfg.BlockID]*cfg.BasicBlock, len(blocks))
	for _, b := range blocks {
		m[b.ID] = b
	}
	return &cfg.Function{Entry: entry, Exit: exit, Blocks: m}
}

// Diamond: 0 -> {1,2} -> 3. No loop, so every element is a bare vertex
// and the entry/exit positions are fixed; the two middle blocks have
// no edge between them so either relative order is a valid
// topological order.
func TestBuildDiamondNoLoop(t *testing.T) {
	f := fn(0, 3,
		block(0, 1, 2),
		block(1, 3),
		block(2, 3),
		block(3),
	)

	w := Build(f)
	elems := w.Elements()
	if len(elems) != 4 {
		t.Fatalf("expected 4 top-level elements, got %d", len(elems))
	}
	if elems[0].Vertex != 0 {
		t.Errorf("expected entry block first, got %d", elems[0].Vertex)
	}
	if elems[3].Vertex != 3 {
		t.Errorf("expected exit block last, got %d", elems[3].Vertex)
	}
	mid := map[cfg.BlockID]bool{elems[1].Vertex: true, elems[2].Vertex: true}
	if !mid[1] || !mid[2] {
		t.Errorf("expected blocks 1 and 2 between entry and exit, got %v", elems)
	}
	for _, e := range elems {
		if e.IsComponent() {
			t.Errorf("diamond CFG has no loop, but %v was built as a component", e)
		}
	}
	if w.IsHead(0) || w.IsHead(1) || w.IsHead(2) || w.IsHead(3) {
		t.Error("no block should be a loop head in an acyclic CFG")
	}
}

// Loop: 0 -> 1 -> {2,3}, 2 -> 1 (back edge). 1 is the loop head, with
// a single-vertex nested body {2}; 3 is the exit, reached once the
// loop is left.
func TestBuildLoopNestsBody(t *testing.T) {
	f := fn(0, 3,
		block(0, 1),
		block(1, 2, 3),
		block(2, 1),
		block(3),
	)

	w := Build(f)
	elems := w.Elements()
	if len(elems) != 3 {
		t.Fatalf("expected [entry, loop-component, exit], got %d elements: %v", len(elems), elems)
	}
	if elems[0].Vertex != 0 {
		t.Errorf("expected entry block first, got %d", elems[0].Vertex)
	}
	if elems[2].Vertex != 3 {
		t.Errorf("expected exit block last, got %d", elems[2].Vertex)
	}
	comp := elems[1]
	if !comp.IsComponent() {
		t.Fatalf("expected element 1 to be a loop component, got %v", comp)
	}
	if comp.Head != 1 {
		t.Errorf("expected loop head 1, got %d", comp.Head)
	}
	if len(comp.Body) != 1 || comp.Body[0].Vertex != 2 {
		t.Errorf("expected loop body [2], got %v", comp.Body)
	}
	if !w.IsHead(1) {
		t.Error("expected block 1 to be recorded as a loop head")
	}
	if w.IsHead(0) || w.IsHead(2) || w.IsHead(3) {
		t.Error("only block 1 should be a loop head")
	}
}
