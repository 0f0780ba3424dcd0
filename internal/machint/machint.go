// Package machint implements fixed-bit-width machine integers with
// wraparound normalization, matching C/C++'s signed/unsigned integer
// semantics. Small widths (<=64) stay on a native uint64 payload;
// wider ones fall back to bigint.Int.
package machint

import (
	"fmt"

	"knight/internal/bigint"
	"knight/internal/errors"
)

// MachInt is an immutable (value, width, signedness) triple, always
// held in normalized form.
type MachInt struct {
	small    uint64
	big      bigint.Int
	wide     bool
	width    uint
	unsigned bool
}

// New builds a MachInt from an arbitrary-precision value, normalizing
// it to (width, unsigned).
func New(v bigint.Int, width uint, unsigned bool) MachInt {
	if width < 1 {
		errors.Raise("machint", errors.BitWidthMismatch, "bit_width must be >= 1")
	}
	m := MachInt{width: width, unsigned: unsigned, wide: width > 64}
	if m.wide {
		m.big = normalizeBig(v, width, unsigned)
		return m
	}
	m.small = normalizeSmall(toUint64Mod(v, width), width, unsigned)
	return m
}

// FromInt64 / FromUint64 are convenience constructors for small widths.
func FromInt64(v int64, width uint, unsigned bool) MachInt {
	return New(bigint.FromInt64(v), width, unsigned)
}

func FromUint64(v uint64, width uint, unsigned bool) MachInt {
	return New(bigint.FromUint64(v), width, unsigned)
}

func (m MachInt) Width() uint      { return m.width }
func (m MachInt) IsUnsigned() bool { return m.unsigned }
func (m MachInt) IsSigned() bool   { return !m.unsigned }

// Value returns the canonical arbitrary-precision representative:
// unsigned in [0, 2^w), signed in [-2^(w-1), 2^(w-1)).
func (m MachInt) Value() bigint.Int {
	if m.wide {
		return m.big
	}
	if m.unsigned {
		return bigint.FromUint64(m.small)
	}
	return bigint.FromInt64(signedSmall(m.small, m.width))
}

func signedSmall(small uint64, width uint) int64 {
	if width == 64 {
		return int64(small)
	}
	signBit := uint64(1) << (width - 1)
	if small&signBit != 0 {
		return int64(small) - int64(uint64(1)<<width)
	}
	return int64(small)
}

func maskFor(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func normalizeSmall(v uint64, width uint, unsigned bool) uint64 {
	v &= maskFor(width)
	_ = unsigned // signed representative recovered lazily via Value()
	return v
}

func toUint64Mod(v bigint.Int, width uint) uint64 {
	m := bigint.FromInt64(1).Shl(width) // 2^width
	r := v.Mod(m)
	return r.Uint64()
}

func normalizeBig(v bigint.Int, width uint, unsigned bool) bigint.Int {
	modulus := bigint.FromInt64(1).Shl(width)
	r := v.Mod(modulus)
	if unsigned {
		return r
	}
	half := bigint.FromInt64(1).Shl(width - 1)
	if r.Ge(half) {
		return r.Sub(modulus)
	}
	return r
}

func sameShape(a, b MachInt) {
	if a.width != b.width {
		errors.Raise("machint", errors.BitWidthMismatch, "bit width mismatch: %d vs %d", a.width, b.width)
	}
	if a.unsigned != b.unsigned {
		errors.Raise("machint", errors.BitWidthMismatch, "signedness mismatch")
	}
}

// Overflow reports whether the mathematically exact result of a
// binary op would not have fit in (width, unsigned) before wrapping.
type Overflow bool

func (m MachInt) normalizedFrom(v bigint.Int) (MachInt, Overflow) {
	exact := v
	norm := New(v, m.width, m.unsigned)
	return norm, Overflow(!exact.Eq(norm.Value()))
}

func (a MachInt) Add(b MachInt) (MachInt, Overflow) {
	sameShape(a, b)
	return a.normalizedFrom(a.Value().Add(b.Value()))
}

func (a MachInt) Sub(b MachInt) (MachInt, Overflow) {
	sameShape(a, b)
	return a.normalizedFrom(a.Value().Sub(b.Value()))
}

func (a MachInt) Mul(b MachInt) (MachInt, Overflow) {
	sameShape(a, b)
	return a.normalizedFrom(a.Value().Mul(b.Value()))
}

// Div is truncated-toward-zero division; dividing by zero is a
// programmer precondition violation (spec §9(c)).
func (a MachInt) Div(b MachInt) (MachInt, Overflow) {
	sameShape(a, b)
	if b.Value().IsZero() {
		errors.Raise("machint", errors.DivisionByZero, "division by zero")
	}
	return a.normalizedFrom(a.Value().Div(b.Value()))
}

// Rem is truncated remainder (sign of the dividend).
func (a MachInt) Rem(b MachInt) MachInt {
	sameShape(a, b)
	if b.Value().IsZero() {
		errors.Raise("machint", errors.DivisionByZero, "division by zero")
	}
	r, _ := a.normalizedFrom(a.Value().Rem(b.Value()))
	return r
}

// Mod is Euclidean modulo, result in [0, |b|).
func (a MachInt) Mod(b MachInt) MachInt {
	sameShape(a, b)
	if b.Value().IsZero() {
		errors.Raise("machint", errors.DivisionByZero, "division by zero")
	}
	r, _ := a.normalizedFrom(a.Value().Mod(b.Value()))
	return r
}

func (a MachInt) And(b MachInt) MachInt {
	sameShape(a, b)
	r, _ := a.normalizedFrom(a.Value().And(b.Value()))
	return r
}

func (a MachInt) Or(b MachInt) MachInt {
	sameShape(a, b)
	r, _ := a.normalizedFrom(a.Value().Or(b.Value()))
	return r
}

func (a MachInt) Xor(b MachInt) MachInt {
	sameShape(a, b)
	r, _ := a.normalizedFrom(a.Value().Xor(b.Value()))
	return r
}

// Shl is a logical left shift; out-of-range counts ([0, width)) are a
// precondition violation.
func (a MachInt) Shl(n uint) (MachInt, Overflow) {
	if n >= a.width {
		errors.Raise("machint", errors.ShiftOutOfRange, "shift count %d out of range for width %d", n, a.width)
	}
	return a.normalizedFrom(a.Value().Shl(n))
}

// Shr dispatches to arithmetic shift for signed, logical for unsigned.
func (a MachInt) Shr(n uint) MachInt {
	if n >= a.width {
		errors.Raise("machint", errors.ShiftOutOfRange, "shift count %d out of range for width %d", n, a.width)
	}
	if a.unsigned {
		u := toUint64UnsignedForm(a)
		r, _ := a.normalizedFrom(u.Shr(n))
		return r
	}
	r, _ := a.normalizedFrom(a.Value().Shr(n))
	return r
}

func toUint64UnsignedForm(a MachInt) bigint.Int {
	if a.wide {
		modulus := bigint.FromInt64(1).Shl(a.width)
		return a.big.Mod(modulus)
	}
	return bigint.FromUint64(a.small)
}

func (a MachInt) Gcd(b MachInt) MachInt {
	sameShape(a, b)
	r, _ := a.normalizedFrom(a.Value().Gcd(b.Value()))
	return r
}

func (a MachInt) Cmp(b MachInt) int {
	sameShape(a, b)
	return a.Value().Cmp(b.Value())
}

func (a MachInt) Eq(b MachInt) bool { return a.Cmp(b) == 0 }

// TruncToBitWidth narrows to a smaller width, keeping signedness.
func (a MachInt) TruncToBitWidth(width uint) MachInt {
	if width > a.width {
		errors.Raise("machint", errors.BitWidthMismatch, "trunc_to_bit_width requires width <= current width")
	}
	return New(a.Value(), width, a.unsigned)
}

// ExtToBitWidth widens to a larger width: zero-extends if unsigned,
// sign-extends if signed.
func (a MachInt) ExtToBitWidth(width uint) MachInt {
	if width < a.width {
		errors.Raise("machint", errors.BitWidthMismatch, "ext_to_bit_width requires width >= current width")
	}
	return New(a.Value(), width, a.unsigned)
}

// SignCast reinterprets the same bit pattern under the opposite
// signedness at the same width.
func (a MachInt) SignCast() MachInt {
	return New(a.Value(), a.width, !a.unsigned)
}

// Cast performs a combined width/signedness conversion: the operand is
// reinterpreted bit-for-bit in its own signedness, then normalized to
// the destination (width, unsigned), matching C's conversion rules
// (truncate-then-reinterpret for narrowing, sign/zero-extend for
// widening).
func (a MachInt) Cast(width uint, unsigned bool) MachInt {
	return New(a.Value(), width, unsigned)
}

func (a MachInt) String() string {
	sign := "s"
	if a.unsigned {
		sign = "u"
	}
	return fmt.Sprintf("%v:%s%d", a.Value(), sign, a.width)
}
