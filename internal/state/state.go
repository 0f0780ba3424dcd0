// Package state implements the persistent program state of spec §3.9:
// a hash-consed record of domain values, region definitions, per-
// statement symbolic values, and a constraint system, combined via
// join/widen/meet/narrow per spec §4.4. States are immutable from
// outside; every mutator (the With* methods and Join/Meet/Widen/Narrow)
// clones, applies the change, and returns the result as an un-interned
// candidate. Only states passed through Manager.Intern share one
// *State identity when structurally equal; the mutators do not call it.
package state

import (
	"fmt"
	"sort"
	"sync"

	"knight/internal/bigint"
	"knight/internal/cfg"
	"knight/internal/constraint"
	"knight/internal/domain"
	"knight/internal/interval"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/symbol"
)

// RegionKey pairs a region with the stack frame its definition is
// bound in (spec §3.9's `region_defs : (Region, StackFrame) -> RegionDef`).
type RegionKey struct {
	Region *region.Region
	Frame  *region.StackFrame
}

// StmtKey pairs a statement with the frame it was resolved in.
type StmtKey struct {
	Stmt  *cfg.Stmt
	Frame *region.StackFrame
}

// State is a persistent snapshot of the engine's abstract knowledge at
// one program point.
type State struct {
	bottom bool

	domainValues map[domain.Id]domain.Domain
	regionDefs   map[RegionKey]symbol.RegionDef
	stmtSexprs   map[StmtKey]symbol.Ref
	constraints  constraint.System
}

func empty() *State {
	return &State{
		domainValues: make(map[domain.Id]domain.Domain),
		regionDefs:   make(map[RegionKey]symbol.RegionDef),
		stmtSexprs:   make(map[StmtKey]symbol.Ref),
		constraints:  constraint.New(),
	}
}

// clone is the clone-then-replace primitive every With* method builds
// on; it is shallow over the map values (domain.Domain values are
// cloned individually only when mutated, never shared mutably).
func (s *State) clone() *State {
	c := &State{
		bottom:       s.bottom,
		domainValues: make(map[domain.Id]domain.Domain, len(s.domainValues)),
		regionDefs:   make(map[RegionKey]symbol.RegionDef, len(s.regionDefs)),
		stmtSexprs:   make(map[StmtKey]symbol.Ref, len(s.stmtSexprs)),
		constraints:  s.constraints,
	}
	for id, d := range s.domainValues {
		c.domainValues[id] = d
	}
	for k, v := range s.regionDefs {
		c.regionDefs[k] = v
	}
	for k, v := range s.stmtSexprs {
		c.stmtSexprs[k] = v
	}
	return c
}

// IsBottom holds iff any tracked domain value is bottom (spec §3.9).
func (s *State) IsBottom() bool {
	if s.bottom {
		return true
	}
	for _, d := range s.domainValues {
		if d.IsBottom() {
			return true
		}
	}
	return false
}

// IsTop holds iff every tracked domain value is top (vacuously true
// for a state with no domain entries).
func (s *State) IsTop() bool {
	if s.bottom {
		return false
	}
	for _, d := range s.domainValues {
		if !d.IsTop() {
			return false
		}
	}
	return true
}

// Domain returns the current value of domain id, if tracked.
func (s *State) Domain(id domain.Id) (domain.Domain, bool) {
	d, ok := s.domainValues[id]
	return d, ok
}

// WithDomain returns a candidate state with id's value replaced.
func (s *State) WithDomain(id domain.Id, d domain.Domain) *State {
	c := s.clone()
	c.domainValues[id] = d
	return c
}

// RegionDef returns the current definition bound to a region in frame.
func (s *State) RegionDef(r *region.Region, frame *region.StackFrame) (symbol.RegionDef, bool) {
	d, ok := s.regionDefs[RegionKey{Region: r, Frame: frame}]
	return d, ok
}

// WithRegionDef returns a candidate state with r's binding in frame
// replaced by def.
func (s *State) WithRegionDef(r *region.Region, frame *region.StackFrame, def symbol.RegionDef) *State {
	c := s.clone()
	c.regionDefs[RegionKey{Region: r, Frame: frame}] = def
	return c
}

// StmtSexpr returns the symbolic value stmt resolved to in frame.
func (s *State) StmtSexpr(stmt *cfg.Stmt, frame *region.StackFrame) (symbol.Ref, bool) {
	v, ok := s.stmtSexprs[StmtKey{Stmt: stmt, Frame: frame}]
	return v, ok
}

// WithStmtSexpr returns a candidate state recording stmt's resolved value.
func (s *State) WithStmtSexpr(stmt *cfg.Stmt, frame *region.StackFrame, v symbol.Ref) *State {
	c := s.clone()
	c.stmtSexprs[StmtKey{Stmt: stmt, Frame: frame}] = v
	return c
}

// Constraints returns the tracked constraint system.
func (s *State) Constraints() constraint.System { return s.constraints }

// WithConstraints returns a candidate state with the constraint system
// replaced wholesale.
func (s *State) WithConstraints(cs constraint.System) *State {
	c := s.clone()
	c.constraints = cs
	return c
}

// bottomState is the unique sentinel every manager interns bottom to.
func bottomState() *State { return &State{bottom: true} }

func domainIDs(a, b map[domain.Id]domain.Domain) []domain.Id {
	seen := make(map[domain.Id]bool, len(a)+len(b))
	var ids []domain.Id
	for id := range a {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range b {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// combineOp is one of Join/Widen/Meet/Narrow, applied pointwise per
// spec §4.4.1 step 1: present-in-either domains combine; a domain
// missing on one side defaults to the present value for the
// join/widen family, or is dropped from the result for the
// meet/narrow family (a domain absent on one side has no information
// to intersect against, so the combination must not invent one).
type combineOp struct {
	name      string
	dropOnGap bool
	apply     func(id domain.Id, dst domain.Domain, src domain.Domain)
}

var (
	joinOp = combineOp{name: "join", apply: func(_ domain.Id, dst, src domain.Domain) { dst.JoinWith(src) }}
	meetOp = combineOp{name: "meet", dropOnGap: true, apply: func(_ domain.Id, dst, src domain.Domain) { dst.MeetWith(src) }}
)

// Thresholds maps a domain id to the threshold values its
// widen/narrow-with-threshold variant should prefer over jumping
// straight to infinity (spec §4.4.1). Only consulted for domains that
// implement domain.Numerical; non-numerical domains always fall back
// to unbounded widen/narrow.
type Thresholds map[domain.Id][]bigint.Int

func widenOp(thresholds Thresholds) combineOp {
	return combineOp{name: "widen", apply: func(id domain.Id, dst, src domain.Domain) {
		if nd, ok := dst.(domain.Numerical); ok {
			if ts, ok := thresholds[id]; ok {
				nd.WidenWithThreshold(src, ts)
				return
			}
		}
		dst.WidenWith(src)
	}}
}

func narrowOp(thresholds Thresholds) combineOp {
	return combineOp{name: "narrow", dropOnGap: true, apply: func(id domain.Id, dst, src domain.Domain) {
		if nd, ok := dst.(domain.Numerical); ok {
			if ts, ok := thresholds[id]; ok {
				nd.NarrowWithThreshold(src, ts)
				return
			}
		}
		dst.NarrowWith(src)
	}}
}

func (s *State) combine(other *State, op combineOp, fresh *FreshDefSource) *State {
	if s.bottom || other.bottom {
		if op.dropOnGap {
			return bottomState()
		}
		if s.bottom {
			return other.clone()
		}
		return s.clone()
	}

	out := empty()
	for _, id := range domainIDs(s.domainValues, other.domainValues) {
		sd, sOK := s.domainValues[id]
		od, oOK := other.domainValues[id]
		switch {
		case sOK && oOK:
			cl := sd.Clone()
			op.apply(id, cl, od)
			out.domainValues[id] = cl
		case sOK && !oOK:
			if op.dropOnGap {
				continue
			}
			out.domainValues[id] = sd.Clone()
		case !sOK && oOK:
			if op.dropOnGap {
				continue
			}
			out.domainValues[id] = od.Clone()
		}
	}

	out.stmtSexprs = combineStmtSexprs(s.stmtSexprs, other.stmtSexprs)
	out.regionDefs = agreeingRegionDefs(s.regionDefs, other.regionDefs)
	s.mintFreshRegionDefs(other, out, fresh)
	out.constraints = s.constraints.Retain(other.constraints)
	out.Normalize()
	return out
}

// combineStmtSexprs implements spec §4.4.1 step 2: entries unique to
// one side are kept; entries present on both sides are kept only when
// they agree.
func combineStmtSexprs(a, b map[StmtKey]symbol.Ref) map[StmtKey]symbol.Ref {
	out := make(map[StmtKey]symbol.Ref, len(a)+len(b))
	for k, v := range a {
		if ov, ok := b[k]; ok {
			if ov == v {
				out[k] = v
			}
			continue
		}
		out[k] = v
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// agreeingRegionDefs keeps bindings the two sides agree on, plus
// bindings unique to one side; bindings present on both sides but
// disagreeing are left out here and are instead resolved by
// mintFreshRegionDefs (spec §4.4.1 step 3).
func agreeingRegionDefs(a, b map[RegionKey]symbol.RegionDef) map[RegionKey]symbol.RegionDef {
	out := make(map[RegionKey]symbol.RegionDef, len(a)+len(b))
	for k, v := range a {
		if ov, ok := b[k]; ok {
			if ov == v {
				out[k] = v
			}
			continue
		}
		out[k] = v
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// FreshDefSource mints the region definition standing in for a region
// whose binding disagreed across a merge (spec §4.4.1 step 3, invariant
// (ii)). It is backed by the analysis's symbol.Manager and conjures one
// symbol per disagreeing region, keyed by that region's own identity —
// not by a per-call counter — so that re-joining or re-widening the
// same loop head on successive fixpoint rounds resolves x's merged
// binding to the *same* conjured symbol every round. Fixpoint
// stabilization (State.Leq/Equals, and the interval domain's own
// variable-keyed comparison beneath it) depends on that reuse: a fresh
// symbol minted anew each round would make every round's state
// incomparable to the last and the iteration would never converge.
type FreshDefSource struct {
	mgr *symbol.Manager
}

func NewFreshDefSource(mgr *symbol.Manager) *FreshDefSource {
	return &FreshDefSource{mgr: mgr}
}

func (f *FreshDefSource) next(typ region.ValueType, frame *region.StackFrame, k RegionKey) symbol.RegionDef {
	tag := fmt.Sprintf("merge@region#%d", k.Region.ID())
	return f.mgr.Conjured(0, typ, frame, tag)
}

// mintFreshRegionDefs resolves each region whose binding disagreed
// between s and other: it mints a fresh def, binds it into out, and —
// for every numerical domain — assigns the fresh def's linear
// variable the join of the two incoming bindings' intervals, so the
// merged variable still relates to both incoming values. Linear
// variables are identified with the region def's SymId, the
// convention the resolver package also follows. With fresh == nil
// (e.g. a caller that only needs a conservative over-approximation and
// has no symbol.Manager at hand), disagreeing bindings are simply
// dropped instead, which is still sound, only less precise.
func (s *State) mintFreshRegionDefs(other *State, out *State, fresh *FreshDefSource) {
	if fresh == nil {
		return
	}
	for k, v1 := range s.regionDefs {
		v2, ok := other.regionDefs[k]
		if !ok || v2 == v1 {
			continue
		}
		def := fresh.next(v1.Type(), k.Frame, k)
		out.regionDefs[k] = def

		newVar := linear.Var(def.ID())
		oldVar1 := linear.Var(v1.ID())
		oldVar2 := linear.Var(v2.ID())
		for id, d := range out.domainValues {
			nd, ok := d.(domain.Numerical)
			if !ok {
				continue
			}
			sd, sOK := s.domainValues[id].(domain.Numerical)
			od, oOK := other.domainValues[id].(domain.Numerical)
			if !sOK || !oOK {
				continue
			}
			combined := sd.Project(oldVar1).Join(od.Project(oldVar2))
			assignInterval(nd, newVar, combined)
		}
	}
}

// assignInterval binds v in nd to iv, expressed as the tightest
// available/lower-upper constraints; v is otherwise unconstrained
// (top) in a freshly-minted domain, so only finite bounds need
// asserting.
func assignInterval(nd domain.Numerical, v linear.Var, iv interval.Interval) {
	if iv.IsBottom() {
		nd.SetToBottom()
		return
	}
	if iv.IsTop() {
		return
	}
	if lb := iv.LB(); lb.IsFinite() {
		nd.ApplyConstraint(linear.GE(linear.NewVarExpr(v), linear.NewExpr(lb.Value())))
	}
	if ub := iv.UB(); ub.IsFinite() {
		nd.ApplyConstraint(linear.LE(linear.NewVarExpr(v), linear.NewExpr(ub.Value())))
	}
}

// Normalize demotes the state to bottom if any tracked domain value is
// bottom, mirroring each domain's own Normalize invariant at the state
// level.
func (s *State) Normalize() {
	if s.bottom {
		return
	}
	for _, d := range s.domainValues {
		d.Normalize()
		if d.IsBottom() {
			s.bottom = true
			s.domainValues = nil
			s.regionDefs = nil
			s.stmtSexprs = nil
			return
		}
	}
}

// Join, Meet, Widen and Narrow implement spec §4.4.1. fresh may be nil,
// in which case a region binding disagreement is conservatively
// dropped rather than resolved with a newly minted def.
func (s *State) Join(other *State, fresh *FreshDefSource) *State {
	return s.combine(other, joinOp, fresh)
}

func (s *State) Meet(other *State, fresh *FreshDefSource) *State {
	return s.combine(other, meetOp, fresh)
}

func (s *State) Widen(other *State, fresh *FreshDefSource) *State {
	return s.combine(other, widenOp(nil), fresh)
}

func (s *State) Narrow(other *State, fresh *FreshDefSource) *State {
	return s.combine(other, narrowOp(nil), fresh)
}

// WidenWithThreshold and NarrowWithThreshold are the threshold variants
// of spec §4.4.1's last paragraph.
func (s *State) WidenWithThreshold(other *State, ts Thresholds, fresh *FreshDefSource) *State {
	return s.combine(other, widenOp(ts), fresh)
}

func (s *State) NarrowWithThreshold(other *State, ts Thresholds, fresh *FreshDefSource) *State {
	return s.combine(other, narrowOp(ts), fresh)
}

// Leq implements spec §4.4.2: for every domain present in self, either
// it is missing in other while self is bottom, or self's value is leq
// other's value at that id.
func (s *State) Leq(other *State) bool {
	if s.bottom {
		return true
	}
	if other.bottom {
		return false
	}
	for id, sd := range s.domainValues {
		od, ok := other.domainValues[id]
		if !ok {
			if sd.IsBottom() {
				continue
			}
			return false
		}
		if !sd.Leq(od) {
			return false
		}
	}
	return true
}

// Equals additionally requires equal region_defs and a domain-by-
// domain equals (spec §4.4.2).
func (s *State) Equals(other *State) bool {
	if s.bottom != other.bottom {
		return false
	}
	if s.bottom {
		return true
	}
	if len(s.domainValues) != len(other.domainValues) {
		return false
	}
	for id, sd := range s.domainValues {
		od, ok := other.domainValues[id]
		if !ok || !sd.Equals(od) {
			return false
		}
	}
	if len(s.regionDefs) != len(other.regionDefs) {
		return false
	}
	for k, v := range s.regionDefs {
		if ov, ok := other.regionDefs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Manager owns the interning pool of program states for one analysis
// context, plus explicit reference counts on each interned state (spec
// §4.4: "on reaching zero the state is unlinked from the folding set
// and returned to the free list"). Go's garbage collector reclaims the
// backing memory once unreachable; the free list here only records
// released states for Stats to count. Intern does not take states or
// capacity from it.
type Manager struct {
	mu       sync.Mutex
	pool     map[string][]*State
	refs     map[*State]int
	freeList []*State
}

func NewManager() *Manager {
	return &Manager{pool: make(map[string][]*State), refs: make(map[*State]int)}
}

// Empty returns the (interned) top state with no tracked domains.
func (m *Manager) Empty() *State { return m.Intern(empty()) }

// Bottom returns the (interned) canonical bottom state.
func (m *Manager) Bottom() *State { return m.Intern(bottomState()) }

// Intern looks up candidate in the folding set, returning the existing
// canonical state if one is structurally equal, or inserting and
// returning candidate otherwise. Either way the returned state's
// reference count is incremented.
func (m *Manager) Intern(candidate *State) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := candidate.foldKey()
	for _, existing := range m.pool[key] {
		if existing.Equals(candidate) && regionDefsEqual(existing.regionDefs, candidate.regionDefs) {
			m.refs[existing]++
			return existing
		}
	}
	m.pool[key] = append(m.pool[key], candidate)
	m.refs[candidate] = 1
	return candidate
}

// AddRef increments s's reference count; s must have come from Intern.
func (m *Manager) AddRef(s *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[s]++
}

// Release decrements s's reference count, unlinking it from the
// folding set and pushing it onto the free list once it reaches zero.
func (m *Manager) Release(s *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[s]--
	if m.refs[s] > 0 {
		return
	}
	delete(m.refs, s)
	key := s.foldKey()
	bucket := m.pool[key]
	for i, c := range bucket {
		if c == s {
			m.pool[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(m.pool[key]) == 0 {
		delete(m.pool, key)
	}
	m.freeList = append(m.freeList, s)
}

// Size reports how many distinct states are currently interned.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs)
}

func regionDefsEqual(a, b map[RegionKey]symbol.RegionDef) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// foldKey is a cheap structural bucket key; Intern still falls back to
// a full Equals comparison within the bucket, so foldKey only needs to
// be consistent (equal states hash equal), not collision-free.
func (s *State) foldKey() string {
	if s.bottom {
		return "bottom"
	}
	var sb []byte
	ids := make([]domain.Id, 0, len(s.domainValues))
	for id := range s.domainValues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		sb = append(sb, byte(id))
		sb = append(sb, s.domainValues[id].Dump()...)
		sb = append(sb, 0)
	}
	sb = append(sb, byte(len(s.regionDefs)), byte(len(s.stmtSexprs)))
	return string(sb)
}
