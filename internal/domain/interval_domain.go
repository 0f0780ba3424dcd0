package domain

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/slices"

	"knight/internal/bigint"
	"knight/internal/interval"
	"knight/internal/linear"
	"knight/internal/machint"
)

// IntervalDomain is the separate (non-relational) numerical domain of
// spec §3.7/§4.3: a map from variable to interval. Absence of a key
// denotes top for that variable (spec §9 open question (a)); the map
// never stores an explicit top entry.
type IntervalDomain struct {
	bottom bool
	vals   map[linear.Var]interval.Interval
}

// NewIntervalDomain returns top (no tracked variables).
func NewIntervalDomain() *IntervalDomain {
	return &IntervalDomain{vals: make(map[linear.Var]interval.Interval)}
}

func (d *IntervalDomain) IsTop() bool    { return !d.bottom && len(d.vals) == 0 }
func (d *IntervalDomain) IsBottom() bool { return d.bottom }

func (d *IntervalDomain) SetToTop() {
	d.bottom = false
	d.vals = make(map[linear.Var]interval.Interval)
}

func (d *IntervalDomain) SetToBottom() {
	d.bottom = true
	d.vals = nil
}

func (d *IntervalDomain) get(v linear.Var) interval.Interval {
	if iv, ok := d.vals[v]; ok {
		return iv
	}
	return interval.Top()
}

func (d *IntervalDomain) setOrDrop(v linear.Var, iv interval.Interval) {
	if iv.IsBottom() {
		d.SetToBottom()
		return
	}
	if iv.IsTop() {
		delete(d.vals, v)
		return
	}
	d.vals[v] = iv
}

func (d *IntervalDomain) unionVars(other *IntervalDomain) []linear.Var {
	seen := make(map[linear.Var]bool, len(d.vals)+len(other.vals))
	var vs []linear.Var
	for v := range d.vals {
		if !seen[v] {
			seen[v] = true
			vs = append(vs, v)
		}
	}
	for v := range other.vals {
		if !seen[v] {
			seen[v] = true
			vs = append(vs, v)
		}
	}
	slices.Sort(vs)
	return vs
}

func asInterval(other Domain) *IntervalDomain {
	o, ok := other.(*IntervalDomain)
	if !ok {
		panic("domain: IntervalDomain combined with a different domain type")
	}
	return o
}

func (d *IntervalDomain) JoinWith(other Domain) {
	o := asInterval(other)
	if d.bottom {
		*d = *o.Clone().(*IntervalDomain)
		return
	}
	if o.bottom {
		return
	}
	for _, v := range d.unionVars(o) {
		d.setOrDrop(v, d.get(v).Join(o.get(v)))
	}
}

func (d *IntervalDomain) MeetWith(other Domain) {
	o := asInterval(other)
	if d.bottom || o.bottom {
		d.SetToBottom()
		return
	}
	for _, v := range d.unionVars(o) {
		d.setOrDrop(v, d.get(v).Meet(o.get(v)))
	}
	d.Normalize()
}

func (d *IntervalDomain) WidenWith(other Domain) {
	o := asInterval(other)
	if d.bottom {
		*d = *o.Clone().(*IntervalDomain)
		return
	}
	if o.bottom {
		return
	}
	for _, v := range d.unionVars(o) {
		d.setOrDrop(v, d.get(v).Widen(o.get(v)))
	}
}

func (d *IntervalDomain) NarrowWith(other Domain) {
	o := asInterval(other)
	if d.bottom || o.bottom {
		d.SetToBottom()
		return
	}
	for _, v := range d.unionVars(o) {
		d.setOrDrop(v, d.get(v).Narrow(o.get(v)))
	}
	d.Normalize()
}

func (d *IntervalDomain) WidenWithThreshold(other Domain, thresholds []bigint.Int) {
	o := asInterval(other)
	if d.bottom {
		*d = *o.Clone().(*IntervalDomain)
		return
	}
	if o.bottom {
		return
	}
	for _, v := range d.unionVars(o) {
		d.setOrDrop(v, d.get(v).WidenThreshold(o.get(v), thresholds))
	}
}

func (d *IntervalDomain) NarrowWithThreshold(other Domain, thresholds []bigint.Int) {
	o := asInterval(other)
	if d.bottom || o.bottom {
		d.SetToBottom()
		return
	}
	for _, v := range d.unionVars(o) {
		d.setOrDrop(v, d.get(v).NarrowThreshold(o.get(v), thresholds))
	}
	d.Normalize()
}

func (d *IntervalDomain) Leq(other Domain) bool {
	o := asInterval(other)
	if d.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	for _, v := range d.unionVars(o) {
		if !d.get(v).Leq(o.get(v)) {
			return false
		}
	}
	return true
}

func (d *IntervalDomain) Equals(other Domain) bool {
	o := asInterval(other)
	if d.bottom != o.bottom {
		return false
	}
	if d.bottom {
		return true
	}
	if len(d.vals) != len(o.vals) {
		return false
	}
	for v, iv := range d.vals {
		oiv, ok := o.vals[v]
		if !ok || !iv.Equal(oiv) {
			return false
		}
	}
	return true
}

// Normalize demotes the whole domain to bottom if any tracked variable
// has become empty.
func (d *IntervalDomain) Normalize() {
	if d.bottom {
		return
	}
	for _, iv := range d.vals {
		if iv.IsBottom() {
			d.SetToBottom()
			return
		}
	}
}

func (d *IntervalDomain) Clone() Domain {
	c := &IntervalDomain{bottom: d.bottom}
	if !d.bottom {
		c.vals = make(map[linear.Var]interval.Interval, len(d.vals))
		for v, iv := range d.vals {
			c.vals[v] = iv
		}
	}
	return c
}

func (d *IntervalDomain) Dump() string {
	if d.bottom {
		return "interval{bottom}"
	}
	vs := make([]linear.Var, 0, len(d.vals))
	for v := range d.vals {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	var sb strings.Builder
	sb.WriteString("interval{")
	for i, v := range vs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "v%d: %s", v, d.vals[v].String())
	}
	sb.WriteString("}")
	return sb.String()
}

// --- variable assignment ---

func (d *IntervalDomain) AssignVarNum(x linear.Var, n bigint.Int) {
	if d.bottom {
		return
	}
	d.setOrDrop(x, interval.Singleton(n))
}

func (d *IntervalDomain) AssignVarVar(x, y linear.Var) {
	if d.bottom {
		return
	}
	d.setOrDrop(x, d.get(y))
}

func (d *IntervalDomain) AssignVarLinearExpr(x linear.Var, e linear.Expr) {
	if d.bottom {
		return
	}
	result := interval.Singleton(e.Constant())
	for _, v := range e.Vars() {
		coeff := interval.Singleton(e.Coefficient(v))
		result = result.Add(coeff.Mul(d.get(v)))
	}
	if result.IsBottom() {
		d.SetToBottom()
		return
	}
	d.setOrDrop(x, result)
}

func (d *IntervalDomain) evalBinary(y, z interval.Interval, op BinOp) interval.Interval {
	switch op {
	case BinAdd:
		return y.Add(z)
	case BinSub:
		return y.Sub(z)
	case BinMul:
		return y.Mul(z)
	case BinDiv:
		return y.Div(z)
	case BinMod:
		return y.Mod(z)
	case BinShl:
		return shiftLeftInterval(y, z)
	case BinShr:
		return shiftRightInterval(y, z)
	case BinAnd, BinOr, BinXor:
		return bitwiseOverApprox(y, z, op)
	default:
		panic("domain: invalid binary op")
	}
}

// shiftLeftInterval / shiftRightInterval approximate shifts by a
// non-negative shift-count interval as multiplication/division by
// powers of two, which is exact for logical shifts.
func shiftLeftInterval(y, z interval.Interval) interval.Interval {
	if z.IsBottom() || y.IsBottom() {
		return interval.Bottom()
	}
	zv, ok := z.IsSingleton()
	if !ok {
		return interval.Top()
	}
	shift := bigint.FromInt64(1).Shl(uint(zv.Int64()))
	return y.Mul(interval.Singleton(shift))
}

func shiftRightInterval(y, z interval.Interval) interval.Interval {
	if z.IsBottom() || y.IsBottom() {
		return interval.Bottom()
	}
	zv, ok := z.IsSingleton()
	if !ok {
		return interval.Top()
	}
	shift := bigint.FromInt64(1).Shl(uint(zv.Int64()))
	return y.Div(interval.Singleton(shift))
}

// bitwiseOverApprox has no precise interval encoding; a singleton on
// both sides can still be computed exactly via bigint, otherwise the
// result is conservatively top.
func bitwiseOverApprox(y, z interval.Interval, op BinOp) interval.Interval {
	yv, yok := y.IsSingleton()
	zv, zok := z.IsSingleton()
	if yok && zok {
		switch op {
		case BinOr:
			return interval.Singleton(yv.Or(zv))
		case BinXor:
			return interval.Singleton(yv.Xor(zv))
		default:
			return interval.Singleton(yv.And(zv))
		}
	}
	return interval.Top()
}

func (d *IntervalDomain) AssignBinaryVarVar(x, y, z linear.Var, op BinOp) {
	if d.bottom {
		return
	}
	d.setOrDrop(x, d.evalBinary(d.get(y), d.get(z), op))
}

func (d *IntervalDomain) AssignBinaryVarNum(x, y linear.Var, op BinOp, n bigint.Int) {
	if d.bottom {
		return
	}
	d.setOrDrop(x, d.evalBinary(d.get(y), interval.Singleton(n), op))
}

// AssignCast clamps y's interval to (dstWidth, dstUnsigned) using
// sign-aware modulo; if the endpoints normalize out of order (the
// value range wraps around the destination's modulus) the domain
// cannot represent the resulting disjoint union and conservatively
// widens to the full representable range (spec §8 scenario 5).
func (d *IntervalDomain) AssignCast(x, y linear.Var, dstWidth uint, dstUnsigned bool) {
	if d.bottom {
		return
	}
	src := d.get(y)
	if src.IsBottom() {
		d.setOrDrop(x, interval.Bottom())
		return
	}
	if src.IsTop() {
		d.setOrDrop(x, fullRange(dstWidth, dstUnsigned))
		return
	}
	lo := machint.New(src.LB().Value(), dstWidth, dstUnsigned).Value()
	hi := machint.New(src.UB().Value(), dstWidth, dstUnsigned).Value()
	span := src.UB().Value().Sub(src.LB().Value())
	modulus := bigint.FromInt64(1).Shl(dstWidth)
	if lo.Gt(hi) || span.Ge(modulus) {
		d.setOrDrop(x, fullRange(dstWidth, dstUnsigned))
		return
	}
	d.setOrDrop(x, interval.New(interval.Finite(lo), interval.Finite(hi)))
}

func fullRange(width uint, unsigned bool) interval.Interval {
	if unsigned {
		return interval.New(interval.Finite(bigint.Zero()), interval.Finite(bigint.FromInt64(1).Shl(width).Sub(bigint.FromInt64(1))))
	}
	half := bigint.FromInt64(1).Shl(width - 1)
	return interval.New(interval.Finite(half.Neg()), interval.Finite(half.Sub(bigint.FromInt64(1))))
}

// --- constraint application ---

// operationBudgetFactor bounds the constraint fixpoint's total work at
// 10x the per-cycle operation count (spec §4.3).
const operationBudgetFactor = 10

func (d *IntervalDomain) ApplyConstraint(c linear.Constraint) {
	d.ApplyConstraintSystem(linear.NewSystem(c))
}

func (d *IntervalDomain) ApplyConstraintSystem(cs linear.System) {
	if d.bottom {
		return
	}
	constraints := cs.Constraints()
	if len(constraints) == 0 {
		return
	}
	for _, c := range constraints {
		if c.IsContradiction() {
			d.SetToBottom()
			return
		}
	}

	trigger := buildTriggerTable(constraints)
	perCycleOps := 0
	for _, vars := range trigger {
		perCycleOps += len(vars)
	}
	budget := operationBudgetFactor * perCycleOps
	if budget == 0 {
		budget = operationBudgetFactor
	}

	refined := map[linear.Var]bool{}
	for v := range trigger {
		refined[v] = true
	}

	for len(refined) > 0 && budget > 0 {
		next := map[linear.Var]bool{}
		for v := range refined {
			for _, idx := range trigger[v] {
				if budget <= 0 {
					break
				}
				budget--
				if d.refineOne(constraints[idx], v) {
					next[v] = true
				}
				if d.bottom {
					return
				}
			}
		}
		refined = next
	}
	d.Normalize()
}

func buildTriggerTable(cs []linear.Constraint) map[linear.Var][]int {
	t := make(map[linear.Var][]int)
	for i, c := range cs {
		for _, v := range c.Expr.Vars() {
			t[v] = append(t[v], i)
		}
	}
	return t
}

// refineOne isolates pivot in c and meets pivot's current interval
// with the residual implied by c, reporting whether pivot's interval
// changed.
func (d *IntervalDomain) refineOne(c linear.Constraint, pivot linear.Var) bool {
	coeff := c.Expr.Coefficient(pivot)
	if coeff.IsZero() {
		return false
	}
	rest := evalExcluding(c.Expr, pivot, d)
	// coeff*pivot + rest <_op 0  =>  pivot in residual = (-rest)/coeff
	residual := rest.Neg().Div(interval.Singleton(coeff))

	before := d.get(pivot)
	var after interval.Interval
	switch c.Kind {
	case linear.Eq:
		after = before.Meet(residual)
	case linear.Ne:
		after = trimDisequality(before, residual)
	case linear.Le:
		after = refineLe(before, residual, coeff.Sign())
	default:
		return false
	}
	if after.Equal(before) {
		return false
	}
	d.setOrDrop(pivot, after)
	return true
}

func evalExcluding(e linear.Expr, exclude linear.Var, d *IntervalDomain) interval.Interval {
	result := interval.Singleton(e.Constant())
	for _, v := range e.Vars() {
		if v == exclude {
			continue
		}
		coeff := interval.Singleton(e.Coefficient(v))
		result = result.Add(coeff.Mul(d.get(v)))
	}
	return result
}

// trimDisequality refines the disequality x != residual: only when
// residual is a known singleton can it trim an endpoint that touches
// it (spec §4.7).
func trimDisequality(before, residual interval.Interval) interval.Interval {
	v, ok := residual.IsSingleton()
	if !ok {
		return before
	}
	lo, loOK := before.IsSingleton()
	if loOK && lo.Eq(v) {
		return interval.Bottom()
	}
	if before.LB().IsFinite() && before.LB().Value().Eq(v) {
		return interval.New(interval.Finite(v.Add(bigint.FromInt64(1))), before.UB())
	}
	if before.UB().IsFinite() && before.UB().Value().Eq(v) {
		return interval.New(before.LB(), interval.Finite(v.Sub(bigint.FromInt64(1))))
	}
	return before
}

// refineLe refines x <= residual (pivot coefficient positive) or
// x >= residual (pivot coefficient negative), per spec §4.3 step 4.
func refineLe(before, residual interval.Interval, pivotSign int) interval.Interval {
	if pivotSign > 0 {
		return before.Meet(interval.New(interval.MinusInf(), residual.UB()))
	}
	return before.Meet(interval.New(residual.LB(), interval.PlusInf()))
}

func (d *IntervalDomain) Project(x linear.Var) interval.Interval {
	if d.bottom {
		return interval.Bottom()
	}
	return d.get(x)
}

// ToLinearConstraintSystem exports the domain's tracked bounds as a
// linear constraint system (spec §6.2, §8 round-trip property).
func (d *IntervalDomain) ToLinearConstraintSystem() linear.System {
	if d.bottom {
		return linear.NewSystem(linear.NewConstraint(linear.NewExpr(bigint.FromInt64(1)), linear.Eq))
	}
	var cs []linear.Constraint
	vs := make([]linear.Var, 0, len(d.vals))
	for v := range d.vals {
		vs = append(vs, v)
	}
	slices.Sort(vs)
	for _, v := range vs {
		iv := d.vals[v]
		if lb := iv.LB(); lb.IsFinite() {
			cs = append(cs, linear.GE(linear.NewVarExpr(v), linear.NewExpr(lb.Value())))
		}
		if ub := iv.UB(); ub.IsFinite() {
			cs = append(cs, linear.LE(linear.NewVarExpr(v), linear.NewExpr(ub.Value())))
		}
	}
	return linear.NewSystem(cs...)
}
