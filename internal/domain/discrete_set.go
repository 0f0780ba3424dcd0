package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DiscreteSet is top (the unconstrained element universe) or a finite
// set of elements (spec §3.7). Bottom is the empty finite set, which
// is representable directly (unlike IntervalDomain, no sentinel is
// needed) — IsBottom reports true exactly for an empty, non-top set.
type DiscreteSet struct {
	top  bool
	elts map[string]bool
}

func NewDiscreteSet() *DiscreteSet { return &DiscreteSet{elts: make(map[string]bool)} }

func (d *DiscreteSet) IsTop() bool    { return d.top }
func (d *DiscreteSet) IsBottom() bool { return !d.top && len(d.elts) == 0 }

func (d *DiscreteSet) SetToTop() {
	d.top = true
	d.elts = nil
}

func (d *DiscreteSet) SetToBottom() {
	d.top = false
	d.elts = make(map[string]bool)
}

// Add inserts an element (no-op if already top).
func (d *DiscreteSet) Add(e string) {
	if d.top {
		return
	}
	d.elts[e] = true
}

func (d *DiscreteSet) Contains(e string) bool {
	if d.top {
		return true
	}
	return d.elts[e]
}

func (d *DiscreteSet) Elements() []string {
	if d.top {
		return nil
	}
	out := make([]string, 0, len(d.elts))
	for e := range d.elts {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func asDiscreteSet(other Domain) *DiscreteSet {
	o, ok := other.(*DiscreteSet)
	if !ok {
		panic("domain: DiscreteSet combined with a different domain type")
	}
	return o
}

func (d *DiscreteSet) JoinWith(other Domain) {
	o := asDiscreteSet(other)
	if d.top {
		return
	}
	if o.top {
		d.SetToTop()
		return
	}
	for e := range o.elts {
		d.elts[e] = true
	}
}

func (d *DiscreteSet) MeetWith(other Domain) {
	o := asDiscreteSet(other)
	if o.top {
		return
	}
	if d.top {
		d.top = false
		d.elts = make(map[string]bool, len(o.elts))
		for e := range o.elts {
			d.elts[e] = true
		}
		return
	}
	for e := range d.elts {
		if !o.elts[e] {
			delete(d.elts, e)
		}
	}
}

// WidenWith / NarrowWith: a finite-height lattice under set union
// bounded by the universe of elements ever observed has no useful
// acceleration beyond join/meet, so they coincide (spec's general
// "non-numerical domains fall back to unbounded widen/narrow").
func (d *DiscreteSet) WidenWith(other Domain)  { d.JoinWith(other) }
func (d *DiscreteSet) NarrowWith(other Domain) { d.MeetWith(other) }

func (d *DiscreteSet) Leq(other Domain) bool {
	o := asDiscreteSet(other)
	if o.top {
		return true
	}
	if d.top {
		return false
	}
	for e := range d.elts {
		if !o.elts[e] {
			return false
		}
	}
	return true
}

func (d *DiscreteSet) Equals(other Domain) bool {
	o := asDiscreteSet(other)
	if d.top != o.top {
		return false
	}
	if d.top {
		return true
	}
	if len(d.elts) != len(o.elts) {
		return false
	}
	for e := range d.elts {
		if !o.elts[e] {
			return false
		}
	}
	return true
}

func (d *DiscreteSet) Normalize() {}

func (d *DiscreteSet) Clone() Domain {
	c := &DiscreteSet{top: d.top}
	if !d.top {
		c.elts = make(map[string]bool, len(d.elts))
		for e := range d.elts {
			c.elts[e] = true
		}
	}
	return c
}

func (d *DiscreteSet) Dump() string {
	if d.top {
		return "set{top}"
	}
	return fmt.Sprintf("set{%s}", strings.Join(d.Elements(), ", "))
}
