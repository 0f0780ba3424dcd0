// Package constraint implements the constraint-system container H of
// spec §3.8: a linear constraint system plus an opaque set of
// non-linear symbolic facts the linear solver cannot represent (e.g.
// `x * y == z` survives only as a tracked S-expr, not as algebra).
package constraint

import (
	"sort"
	"strings"

	"knight/internal/linear"
	"knight/internal/symbol"
)

// System bundles a linear.System with a set of non-linear symbol.Refs,
// deduplicated by interned identity (pointer equality suffices since
// symbol.Manager interns structurally-equal S-exprs to one Ref).
type System struct {
	linear    linear.System
	nonlinear map[symbol.Ref]bool
}

// New builds an empty (vacuously true) constraint system.
func New() System {
	return System{nonlinear: make(map[symbol.Ref]bool)}
}

// Linear returns the contained linear constraint system.
func (s System) Linear() linear.System { return s.linear }

// NonLinear returns the tracked non-linear facts in a deterministic
// (id-sorted) order.
func (s System) NonLinear() []symbol.Ref {
	out := make([]symbol.Ref, 0, len(s.nonlinear))
	for r := range s.nonlinear {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AddLinear returns a new system with c additionally asserted.
func (s System) AddLinear(c linear.Constraint) System {
	return System{linear: s.linear.Add(c), nonlinear: s.cloneNonLinear()}
}

// AddNonLinear returns a new system that additionally tracks the
// opaque fact r.
func (s System) AddNonLinear(r symbol.Ref) System {
	out := System{linear: s.linear, nonlinear: s.cloneNonLinear()}
	out.nonlinear[r] = true
	return out
}

func (s System) cloneNonLinear() map[symbol.Ref]bool {
	c := make(map[symbol.Ref]bool, len(s.nonlinear))
	for r := range s.nonlinear {
		c[r] = true
	}
	return c
}

// Merge unions both halves (linear via linear.System.Merge, non-linear
// by set union), mirroring the linear system's "combine everything
// known from either side" semantics.
func (s System) Merge(other System) System {
	return System{
		linear:    s.linear.Merge(other.linear),
		nonlinear: unionNonLinear(s.nonlinear, other.nonlinear),
	}
}

// Retain keeps only the facts present in both systems, linear and
// non-linear alike.
func (s System) Retain(other System) System {
	return System{
		linear:    s.linear.Retain(other.linear),
		nonlinear: intersectNonLinear(s.nonlinear, other.nonlinear),
	}
}

func intersectNonLinear(a, b map[symbol.Ref]bool) map[symbol.Ref]bool {
	out := make(map[symbol.Ref]bool)
	for r := range a {
		if b[r] {
			out[r] = true
		}
	}
	return out
}

func unionNonLinear(a, b map[symbol.Ref]bool) map[symbol.Ref]bool {
	out := make(map[symbol.Ref]bool, len(a)+len(b))
	for r := range a {
		out[r] = true
	}
	for r := range b {
		out[r] = true
	}
	return out
}

func (s System) Equal(other System) bool {
	if !s.linear.Equal(other.linear) {
		return false
	}
	if len(s.nonlinear) != len(other.nonlinear) {
		return false
	}
	for r := range s.nonlinear {
		if !other.nonlinear[r] {
			return false
		}
	}
	return true
}

// Hash is a folding-set-compatible, order-independent hash.
func (s System) Hash() uint64 {
	h := s.linear.Hash()
	for _, r := range s.NonLinear() {
		h ^= uint64(r.ID())*0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	return h
}

func (s System) String() string {
	var parts []string
	for _, c := range s.linear.Constraints() {
		parts = append(parts, c.String())
	}
	for _, r := range s.NonLinear() {
		parts = append(parts, r.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
