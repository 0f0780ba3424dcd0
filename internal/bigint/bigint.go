// Package bigint provides an arbitrary-precision, sign-magnitude
// integer built on math/big, with the totality and rounding rules the
// analysis engine's numerical domains depend on (Euclidean mod,
// truncated division, base 2-36 parsing).
package bigint

import (
	"fmt"
	"math/big"

	"github.com/remyoudompheng/bigfft"

	"knight/internal/errors"
)

// fftThreshold is the operand bit length above which multiplication is
// dispatched to bigfft instead of math/big's native Karatsuba. Chosen
// generously above bigfft's own crossover point so small constant-folding
// traffic (the overwhelming majority of calls from the symbol resolver)
// never pays FFT setup cost.
const fftThreshold = 1 << 14

// Int is an immutable arbitrary-precision integer. The zero value is
// not meaningful; use Zero() or one of the constructors.
type Int struct {
	v *big.Int
}

var zeroBig = big.NewInt(0)

// Zero returns the additive identity.
func Zero() Int { return Int{v: zeroBig} }

// FromInt64 builds an Int from a native signed integer.
func FromInt64(n int64) Int { return Int{v: big.NewInt(n)} }

// FromUint64 builds an Int from a native unsigned integer.
func FromUint64(n uint64) Int { return Int{v: new(big.Int).SetUint64(n)} }

// FromString parses n in the given base (2-36); base 0 means "infer
// from prefix" as math/big does. Returns false if the string is not a
// valid representation.
func FromString(s string, base int) (Int, bool) {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return Int{}, false
	}
	return Int{v: v}, true
}

func wrap(v *big.Int) Int { return Int{v: v} }

// Text formats the value in the given base (2-36).
func (a Int) Text(base int) string { return a.v.Text(base) }

func (a Int) String() string { return a.v.String() }

// Sign returns -1, 0, or 1.
func (a Int) Sign() int { return a.v.Sign() }

func (a Int) IsZero() bool { return a.v.Sign() == 0 }

// BitLen returns the number of bits required to represent |a|, with
// BitLen(0) == 0, matching math/big.
func (a Int) BitLen() int { return a.v.BitLen() }

// Int64 / Uint64 truncate to the native width; callers that need a
// checked narrowing should go through the machint package instead.
func (a Int) Int64() int64   { return a.v.Int64() }
func (a Int) Uint64() uint64 { return a.v.Uint64() }

// IsInt64 / IsUint64 report whether the value fits losslessly.
func (a Int) IsInt64() bool  { return a.v.IsInt64() }
func (a Int) IsUint64() bool { return a.v.IsUint64() }

func bitsAboveThreshold(a, b *big.Int) bool {
	return a.BitLen() > fftThreshold && b.BitLen() > fftThreshold
}

// mul dispatches large-operand multiplication to bigfft; below the
// threshold math/big's own Karatsuba/Toom-3 selection already wins.
func mul(a, b *big.Int) *big.Int {
	if bitsAboveThreshold(a, b) {
		return bigfft.Mul(a, b)
	}
	return new(big.Int).Mul(a, b)
}

func (a Int) Add(b Int) Int { return wrap(new(big.Int).Add(a.v, b.v)) }
func (a Int) Sub(b Int) Int { return wrap(new(big.Int).Sub(a.v, b.v)) }
func (a Int) Mul(b Int) Int { return wrap(mul(a.v, b.v)) }
func (a Int) Neg() Int      { return wrap(new(big.Int).Neg(a.v)) }
func (a Int) Abs() Int      { return wrap(new(big.Int).Abs(a.v)) }

// Div performs truncated-toward-zero division, matching C/C++ integer
// division semantics (and math/big.Int.Quo). Panics on division by
// zero: that is a programmer precondition violation per spec §7.
func (a Int) Div(b Int) Int {
	if b.IsZero() {
		errors.Raise("bigint", errors.DivisionByZero, "division by zero")
	}
	return wrap(new(big.Int).Quo(a.v, b.v))
}

// Rem is the truncated-toward-zero remainder, sign of the dividend.
func (a Int) Rem(b Int) Int {
	if b.IsZero() {
		errors.Raise("bigint", errors.DivisionByZero, "division by zero")
	}
	return wrap(new(big.Int).Rem(a.v, b.v))
}

// Mod is the Euclidean remainder: result always lies in [0, |b|).
func (a Int) Mod(b Int) Int {
	if b.IsZero() {
		errors.Raise("bigint", errors.DivisionByZero, "division by zero")
	}
	m := new(big.Int).Mod(a.v, new(big.Int).Abs(b.v))
	return wrap(m)
}

func (a Int) And(b Int) Int { return wrap(new(big.Int).And(a.v, b.v)) }
func (a Int) Or(b Int) Int  { return wrap(new(big.Int).Or(a.v, b.v)) }
func (a Int) Xor(b Int) Int { return wrap(new(big.Int).Xor(a.v, b.v)) }
func (a Int) Not(bits uint) Int {
	return wrap(new(big.Int).Not(a.v))
}

// Shl / Shr: shift counts must be non-negative; a negative count is a
// precondition violation (shift count out of range, spec §7).
func (a Int) Shl(n uint) Int {
	return wrap(new(big.Int).Lsh(a.v, n))
}

func (a Int) Shr(n uint) Int {
	return wrap(new(big.Int).Rsh(a.v, n))
}

func (a Int) Cmp(b Int) int { return a.v.Cmp(b.v) }
func (a Int) Eq(b Int) bool { return a.v.Cmp(b.v) == 0 }
func (a Int) Lt(b Int) bool { return a.v.Cmp(b.v) < 0 }
func (a Int) Le(b Int) bool { return a.v.Cmp(b.v) <= 0 }
func (a Int) Gt(b Int) bool { return a.v.Cmp(b.v) > 0 }
func (a Int) Ge(b Int) bool { return a.v.Cmp(b.v) >= 0 }

// Gcd returns the non-negative greatest common divisor of |a| and |b|.
// Gcd(0, 0) == 0.
func (a Int) Gcd(b Int) Int {
	return wrap(new(big.Int).GCD(nil, nil, new(big.Int).Abs(a.v), new(big.Int).Abs(b.v)))
}

// Lcm returns the non-negative least common multiple; Lcm(_, 0) == 0.
func (a Int) Lcm(b Int) Int {
	if a.IsZero() || b.IsZero() {
		return Zero()
	}
	g := a.Gcd(b)
	return a.Div(g).Mul(b).Abs()
}

// ExtGCD solves a*x + b*y = gcd(a,b), returning (gcd, x, y).
func (a Int) ExtGCD(b Int) (gcd, x, y Int) {
	var xv, yv big.Int
	g := new(big.Int).GCD(&xv, &yv, a.v, b.v)
	return wrap(g), wrap(&xv), wrap(&yv)
}

// Hash returns a deterministic hash suitable for folding-set keys.
func (a Int) Hash() uint64 {
	b := a.v.Bytes()
	var h uint64 = 14695981039346656037
	if a.v.Sign() < 0 {
		h ^= 1
		h *= 1099511628211
	}
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// GoString supports %#v and debug dumps.
func (a Int) GoString() string { return fmt.Sprintf("bigint.Int(%s)", a.v.String()) }

// Big exposes the underlying math/big.Int for callers in this module
// (machint) that need to build on it directly; the result must not be
// mutated.
func (a Int) Big() *big.Int { return a.v }

// FromBig wraps an existing *big.Int without copying; callers must not
// mutate v afterwards.
func FromBig(v *big.Int) Int { return Int{v: v} }
