// Package fixpoint implements the intra-procedural fixpoint iterator
// of spec §4.8: a weak-topological-order (WTO) traversal of a
// function's CFG that applies the statement resolver as a transfer
// function and stabilizes loops with widen-then-narrow, grounded on
// knight's own IntraProceduralFixpointIterator
// (src/dfa/engine/intraprocedural_fixpoint.cpp), which drives Bourdoncle's
// WTO-based fixpoint algorithm over a ProcCFG.
//
// The WTO builder itself is new to this module (the original's WTO
// construction lives in an LLVM-side header not in this pack's
// sources); its recursive DFS-with-partition-point structure follows
// the same closure-over-visited-sets shape as the teacher's own
// topologicalSort (internal/build/linker.go).
package fixpoint

import (
	"knight/internal/cfg"

	"golang.org/x/exp/slices"
)

// Element is one entry of a weak topological order: either a bare
// vertex or a nested component whose Head is visited once per outer
// pass and whose Body is the component's own WTO, iterated to a local
// fixpoint before control leaves the component.
type Element struct {
	Vertex cfg.BlockID
	Head   cfg.BlockID
	Body   []Element
	isLoop bool
}

// IsComponent reports whether this element is a nested (loop)
// component rather than a bare vertex.
func (e Element) IsComponent() bool { return e.isLoop }

// Wto is a function's weak topological order: a sequence of elements
// covering every reachable block exactly once, with loop bodies nested
// under their head.
type Wto struct {
	elems []Element
	heads map[cfg.BlockID]bool
}

// Elements returns the top-level sequence.
func (w *Wto) Elements() []Element { return w.elems }

// IsHead reports whether b is the head of some loop component
// anywhere in the order. The iterator does not call it; it tells loop
// heads apart by walking component elements.
func (w *Wto) IsHead(b cfg.BlockID) bool { return w.heads[b] }

// Build constructs the WTO of fn rooted at fn.Entry using Bourdoncle's
// recursive DFS algorithm (Efficient chaotic iteration strategies with
// widenings, 1993): every strongly connected component is rooted at
// its single entry ("head"), and the component's own body is itself a
// WTO over the vertices reachable only through the head.
func Build(fn *cfg.Function) *Wto {
	b := &builder{
		fn:  fn,
		dfn: make(map[cfg.BlockID]int),
		wto: &Wto{heads: make(map[cfg.BlockID]bool)},
	}
	b.elems = &b.wto.elems
	b.visit(fn.Entry, b.elems)
	return b.wto
}

type builder struct {
	fn    *cfg.Function
	dfn   map[cfg.BlockID]int
	num   int
	stack []cfg.BlockID
	wto   *Wto
	elems *[]Element
}

// visit implements Bourdoncle's component(vertex) procedure, appending
// the vertex (or, if it roots a cycle, its nested component) to out.
func (b *builder) visit(v cfg.BlockID, out *[]Element) int {
	b.stack = append(b.stack, v)
	b.num++
	b.dfn[v] = b.num
	head := b.dfn[v]
	loop := false

	for _, succ := range b.successors(v) {
		var min int
		if d, ok := b.dfn[succ]; ok && d != 0 {
			min = d
		} else {
			min = b.visit(succ, out)
		}
		if min <= head {
			head = min
			loop = true
		}
	}

	if head == b.dfn[v] {
		b.dfn[v] = 1 << 30 // effectively infinite: closes v off the active set
		b.popTo(v)
		// v closes off last among the nodes reachable through it, but
		// belongs topologically first among them, so it is prepended
		// rather than appended to the (still partial) sequence.
		if loop {
			b.wto.heads[v] = true
			body := b.component(v)
			prepend(out, Element{Vertex: v, Head: v, Body: body, isLoop: true})
		} else {
			prepend(out, Element{Vertex: v})
		}
	}
	return head
}

func prepend(out *[]Element, e Element) {
	*out = append([]Element{e}, *out...)
}

// popTo pops the DFS stack down to and including v, resetting the dfn
// of every other component member back to 0 so component() recognizes
// them as unvisited.
func (b *builder) popTo(v cfg.BlockID) {
	i := len(b.stack) - 1
	for b.stack[i] != v {
		b.dfn[b.stack[i]] = 0
		i--
	}
	b.stack = b.stack[:i]
}

// component builds the nested WTO rooted at head: every successor of
// head that is still unvisited (dfn == 0, having been reset by popTo)
// is visited in turn, producing the component's body.
func (b *builder) component(head cfg.BlockID) []Element {
	var body []Element
	for _, succ := range b.successors(head) {
		if d, ok := b.dfn[succ]; !ok || d == 0 {
			b.visit(succ, &body)
		}
	}
	return body
}

// successors returns v's CFG successors in deterministic order.
func (b *builder) successors(v cfg.BlockID) []cfg.BlockID {
	blk, ok := b.fn.Block(v)
	if !ok {
		return nil
	}
	out := append([]cfg.BlockID(nil), blk.Successors...)
	slices.Sort(out)
	return out
}
