// Package interval implements extended-integer bounds (finite value or
// +/-infinity) and interval arithmetic with widening/narrowing,
// including threshold variants, over knight's bigint.Int.
package interval

import (
	"knight/internal/bigint"
	"knight/internal/errors"
)

// Bound is either a finite bigint.Int or +/-infinity.
type Bound struct {
	inf   bool
	sign  int // +1 or -1, only meaningful when inf
	value bigint.Int
}

func Finite(v bigint.Int) Bound { return Bound{value: v} }

func PlusInf() Bound  { return Bound{inf: true, sign: 1} }
func MinusInf() Bound { return Bound{inf: true, sign: -1} }

func (b Bound) IsInf() bool      { return b.inf }
func (b Bound) IsPlusInf() bool  { return b.inf && b.sign > 0 }
func (b Bound) IsMinusInf() bool { return b.inf && b.sign < 0 }
func (b Bound) IsFinite() bool   { return !b.inf }

// Value returns the finite value; callers must check IsFinite first.
func (b Bound) Value() bigint.Int {
	if b.inf {
		errors.Raise("interval", errors.UndefinedBoundArithmetic, "Value() on an infinite bound")
	}
	return b.value
}

// Add: +inf + (-inf) is undefined (precondition violation, spec §3.4).
func (a Bound) Add(b Bound) Bound {
	if a.inf && b.inf {
		if a.sign != b.sign {
			errors.Raise("interval", errors.UndefinedBoundArithmetic, "undefined bound arithmetic: +inf + -inf")
		}
		return Bound{inf: true, sign: a.sign}
	}
	if a.inf {
		return a
	}
	if b.inf {
		return b
	}
	return Finite(a.value.Add(b.value))
}

// Sub: a - b == a + (-b); inf - inf with equal sign is undefined.
func (a Bound) Sub(b Bound) Bound { return a.Add(b.Neg()) }

func (a Bound) Neg() Bound {
	if a.inf {
		return Bound{inf: true, sign: -a.sign}
	}
	return Finite(a.value.Neg())
}

// Mul: 0 * inf == 0 by convention (spec §3.4); otherwise sign rules
// for infinities propagate as expected.
func (a Bound) Mul(b Bound) Bound {
	if a.IsFinite() && a.value.IsZero() {
		return Finite(bigint.Zero())
	}
	if b.IsFinite() && b.value.IsZero() {
		return Finite(bigint.Zero())
	}
	asign, bsign := a.signOf(), b.signOf()
	if a.inf || b.inf {
		return Bound{inf: true, sign: asign * bsign}
	}
	return Finite(a.value.Mul(b.value))
}

func (a Bound) signOf() int {
	if a.inf {
		return a.sign
	}
	return a.value.Sign()
}

func (a Bound) Cmp(b Bound) int {
	switch {
	case a.inf && b.inf:
		if a.sign == b.sign {
			return 0
		}
		if a.sign < b.sign {
			return -1
		}
		return 1
	case a.inf:
		return a.sign
	case b.inf:
		return -b.sign
	default:
		return a.value.Cmp(b.value)
	}
}

func (a Bound) Eq(b Bound) bool { return a.Cmp(b) == 0 }
func (a Bound) Lt(b Bound) bool { return a.Cmp(b) < 0 }
func (a Bound) Le(b Bound) bool { return a.Cmp(b) <= 0 }
func (a Bound) Gt(b Bound) bool { return a.Cmp(b) > 0 }
func (a Bound) Ge(b Bound) bool { return a.Cmp(b) >= 0 }

func Min(a, b Bound) Bound {
	if a.Le(b) {
		return a
	}
	return b
}

func Max(a, b Bound) Bound {
	if a.Ge(b) {
		return a
	}
	return b
}

func (b Bound) String() string {
	switch {
	case b.IsPlusInf():
		return "+oo"
	case b.IsMinusInf():
		return "-oo"
	default:
		return b.value.String()
	}
}
