package interval

import "knight/internal/bigint"

// Interval is [lb, ub] with lb <= ub, or the canonical bottom value
// (stored internally as a separate bottom flag, with lb and ub unused —
// callers never observe that encoding directly, only IsBottom()).
type Interval struct {
	bottom bool
	lb, ub Bound
}

// Bottom is the empty interval.
func Bottom() Interval { return Interval{bottom: true} }

// Top is (-inf, +inf).
func Top() Interval { return Interval{lb: MinusInf(), ub: PlusInf()} }

// New builds [lb, ub]; if lb > ub the result is Bottom (matching the
// canonical-bottom convention in spec §3.4).
func New(lb, ub Bound) Interval {
	if lb.Gt(ub) {
		return Bottom()
	}
	return Interval{lb: lb, ub: ub}
}

// Singleton builds [v, v].
func Singleton(v bigint.Int) Interval { return Interval{lb: Finite(v), ub: Finite(v)} }

// FromFinite builds [lo, hi] from native int64s, a convenience for
// tests and literal construction.
func FromFinite(lo, hi int64) Interval {
	return New(Finite(bigint.FromInt64(lo)), Finite(bigint.FromInt64(hi)))
}

func (i Interval) IsBottom() bool { return i.bottom }
func (i Interval) IsTop() bool    { return !i.bottom && i.lb.IsMinusInf() && i.ub.IsPlusInf() }

// LB / UB panic on a bottom interval — callers must check IsBottom.
func (i Interval) LB() Bound {
	if i.bottom {
		panic("interval: LB() on bottom")
	}
	return i.lb
}

func (i Interval) UB() Bound {
	if i.bottom {
		panic("interval: UB() on bottom")
	}
	return i.ub
}

// IsSingleton reports whether the interval denotes exactly one value.
func (i Interval) IsSingleton() (bigint.Int, bool) {
	if i.bottom || !i.lb.IsFinite() || !i.ub.IsFinite() || !i.lb.Eq(i.ub) {
		return bigint.Int{}, false
	}
	return i.lb.Value(), true
}

// Contains reports whether v lies within the interval.
func (i Interval) Contains(v bigint.Int) bool {
	if i.bottom {
		return false
	}
	return i.lb.Le(Finite(v)) && i.ub.Ge(Finite(v))
}

func (a Interval) Join(b Interval) Interval {
	if a.bottom {
		return b
	}
	if b.bottom {
		return a
	}
	return Interval{lb: Min(a.lb, b.lb), ub: Max(a.ub, b.ub)}
}

func (a Interval) Meet(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	return New(Max(a.lb, b.lb), Min(a.ub, b.ub))
}

func (a Interval) Leq(b Interval) bool {
	if a.bottom {
		return true
	}
	if b.bottom {
		return false
	}
	return b.lb.Le(a.lb) && a.ub.Le(b.ub)
}

func (a Interval) Equal(b Interval) bool {
	if a.bottom != b.bottom {
		return false
	}
	if a.bottom {
		return true
	}
	return a.lb.Eq(b.lb) && a.ub.Eq(b.ub)
}

// Widen grows any bound that moved toward infinity to that infinity,
// the classic interval widening operator.
func (a Interval) Widen(b Interval) Interval {
	if a.bottom {
		return b
	}
	if b.bottom {
		return a
	}
	lb := a.lb
	if b.lb.Lt(a.lb) {
		lb = MinusInf()
	}
	ub := a.ub
	if b.ub.Gt(a.ub) {
		ub = PlusInf()
	}
	return Interval{lb: lb, ub: ub}
}

// WidenThreshold widens but, instead of jumping straight to infinity,
// stops at the tightest supplied threshold (or its +/-1 neighbor) that
// still bounds the new value; falls back to Widen if no threshold
// qualifies.
func (a Interval) WidenThreshold(b Interval, thresholds []bigint.Int) Interval {
	if a.bottom {
		return b
	}
	if b.bottom {
		return a
	}
	lb := a.lb
	if b.lb.Lt(a.lb) {
		lb = bestLowerThreshold(b.lb, thresholds)
	}
	ub := a.ub
	if b.ub.Gt(a.ub) {
		ub = bestUpperThreshold(b.ub, thresholds)
	}
	return Interval{lb: lb, ub: ub}
}

func bestLowerThreshold(needLe Bound, thresholds []bigint.Int) Bound {
	best := MinusInf()
	for _, t := range thresholds {
		for _, cand := range []bigint.Int{t, t.Sub(bigint.FromInt64(1))} {
			cb := Finite(cand)
			if cb.Le(needLe) && cb.Gt(best) {
				best = cb
			}
		}
	}
	return best
}

func bestUpperThreshold(needGe Bound, thresholds []bigint.Int) Bound {
	best := PlusInf()
	for _, t := range thresholds {
		for _, cand := range []bigint.Int{t, t.Add(bigint.FromInt64(1))} {
			cb := Finite(cand)
			if cb.Ge(needGe) && cb.Lt(best) {
				best = cb
			}
		}
	}
	return best
}

// Narrow refines an infinite bound back toward the other operand's
// bound; finite bounds on `a` are kept (narrowing must not lose
// soundness by moving a finite bound outward).
func (a Interval) Narrow(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	lb := a.lb
	if a.lb.IsMinusInf() {
		lb = b.lb
	}
	ub := a.ub
	if a.ub.IsPlusInf() {
		ub = b.ub
	}
	return New(lb, ub)
}

// NarrowThreshold narrows like Narrow, but if a bound is infinite and
// the threshold set offers a tighter finite candidate than b's bound,
// that candidate is preferred as long as it still bounds b.
func (a Interval) NarrowThreshold(b Interval, thresholds []bigint.Int) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	lb := a.lb
	if a.lb.IsMinusInf() {
		lb = b.lb
		for _, t := range thresholds {
			cb := Finite(t)
			if cb.Ge(b.lb) && cb.Lt(lb) {
				lb = cb
			}
		}
	}
	ub := a.ub
	if a.ub.IsPlusInf() {
		ub = b.ub
		for _, t := range thresholds {
			cb := Finite(t)
			if cb.Le(b.ub) && cb.Gt(ub) {
				ub = cb
			}
		}
	}
	return New(lb, ub)
}

func (a Interval) Add(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	return New(a.lb.Add(b.lb), a.ub.Add(b.ub))
}

func (a Interval) Sub(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	return New(a.lb.Sub(b.ub), a.ub.Sub(b.lb))
}

// Mul uses corner evaluation: the product's bounds are the min/max of
// the four corner products.
func (a Interval) Mul(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	corners := [4]Bound{
		a.lb.Mul(b.lb), a.lb.Mul(b.ub),
		a.ub.Mul(b.lb), a.ub.Mul(b.ub),
	}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		lo = Min(lo, c)
		hi = Max(hi, c)
	}
	return New(lo, hi)
}

func (a Interval) Neg() Interval {
	if a.bottom {
		return Bottom()
	}
	return New(a.ub.Neg(), a.lb.Neg())
}

// Div splits the divisor around zero when it straddles it (corner
// evaluation is unsound across a zero crossing) and joins the two
// sub-results; dividing by the exact-zero singleton yields Bottom.
func (a Interval) Div(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	zero := Finite(bigint.Zero())
	if v, ok := b.IsSingleton(); ok && v.IsZero() {
		return Bottom()
	}
	if b.lb.Lt(zero) && b.ub.Gt(zero) {
		neg := New(b.lb, zero.Sub(Finite(bigint.FromInt64(1))))
		pos := New(zero.Add(Finite(bigint.FromInt64(1))), b.ub)
		return a.divNoStraddle(neg).Join(a.divNoStraddle(pos))
	}
	return a.divNoStraddle(b)
}

func (a Interval) divNoStraddle(b Interval) Interval {
	if b.bottom {
		return Bottom()
	}
	if v, ok := b.IsSingleton(); ok && v.IsZero() {
		return Bottom()
	}
	corners := [4]Bound{}
	idx := 0
	for _, x := range []Bound{a.lb, a.ub} {
		for _, y := range []Bound{b.lb, b.ub} {
			corners[idx] = divBound(x, y)
			idx++
		}
	}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		lo = Min(lo, c)
		hi = Max(hi, c)
	}
	return New(lo, hi)
}

func divBound(x, y Bound) Bound {
	if y.IsFinite() && y.value.IsZero() {
		// Only reachable with a straddling interval already split by
		// the caller; treat as the limit toward the excluded zero.
		if x.IsFinite() && x.value.IsZero() {
			return Finite(bigint.Zero())
		}
		if x.signOf() > 0 {
			return PlusInf()
		}
		return MinusInf()
	}
	if x.inf || y.inf {
		if y.inf {
			return Finite(bigint.Zero())
		}
		sign := x.sign * y.signOf()
		return Bound{inf: true, sign: sign}
	}
	return Finite(x.value.Div(y.value))
}

// Mod computes the Euclidean-remainder interval intersected with
// [0, |d|-1] for the tightest divisor bound, per spec §3.4/§4.3.
func (a Interval) Mod(b Interval) Interval {
	if a.bottom || b.bottom {
		return Bottom()
	}
	if v, ok := b.IsSingleton(); ok && v.IsZero() {
		return Bottom()
	}
	if av, ok := a.IsSingleton(); ok {
		if dv, ok := b.IsSingleton(); ok {
			return Singleton(av.Mod(dv))
		}
	}
	maxAbs := maxAbsBound(b)
	if !maxAbs.IsFinite() {
		return New(Finite(bigint.Zero()), PlusInf())
	}
	upper := maxAbs.value.Sub(bigint.FromInt64(1))
	if upper.Sign() < 0 {
		upper = bigint.Zero()
	}
	return New(Finite(bigint.Zero()), Finite(upper))
}

func maxAbsBound(b Interval) Bound {
	abss := []Bound{absBound(b.lb), absBound(b.ub)}
	return Max(abss[0], abss[1])
}

func absBound(b Bound) Bound {
	if b.inf {
		return Bound{inf: true, sign: 1}
	}
	return Finite(b.value.Abs())
}

func (i Interval) String() string {
	if i.bottom {
		return "[bottom]"
	}
	return "[" + i.lb.String() + ", " + i.ub.String() + "]"
}
