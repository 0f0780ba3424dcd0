// Package linear implements linear expressions, constraints and
// constraint systems over bigint.Int-coefficient variables, used to
// encode branch conditions and feed the interval domain's constraint
// solver.
package linear

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"knight/internal/bigint"
)

// Var identifies a linear-arithmetic variable. The resolver mints
// these from RegionDef identities; the package itself is agnostic to
// what a Var represents.
type Var uint64

// Expr is a linear expression: sum(coeff_i * var_i) + constant. Zero
// coefficients are never stored — inserting one removes the entry.
type Expr struct {
	coeffs   map[Var]bigint.Int
	constant bigint.Int
}

// NewExpr builds a pure-constant expression.
func NewExpr(constant bigint.Int) Expr {
	return Expr{constant: constant}
}

// NewVarExpr builds the expression `1*v`.
func NewVarExpr(v Var) Expr {
	e := Expr{constant: bigint.Zero()}
	e.coeffs = map[Var]bigint.Int{v: bigint.FromInt64(1)}
	return e
}

func (e Expr) clone() Expr {
	c := Expr{constant: e.constant}
	if len(e.coeffs) > 0 {
		c.coeffs = make(map[Var]bigint.Int, len(e.coeffs))
		for k, v := range e.coeffs {
			c.coeffs[k] = v
		}
	}
	return c
}

// Constant returns the constant term.
func (e Expr) Constant() bigint.Int { return e.constant }

// Coefficient returns the coefficient of v, or zero if absent.
func (e Expr) Coefficient(v Var) bigint.Int {
	if c, ok := e.coeffs[v]; ok {
		return c
	}
	return bigint.Zero()
}

// IsConstant reports whether the expression carries no variables.
func (e Expr) IsConstant() bool { return len(e.coeffs) == 0 }

// Vars returns the expression's variables in a deterministic (sorted)
// order.
func (e Expr) Vars() []Var {
	vs := make([]Var, 0, len(e.coeffs))
	for v := range e.coeffs {
		vs = append(vs, v)
	}
	slices.Sort(vs)
	return vs
}

// AsSingleVar returns (v, true) iff the expression is exactly `1*v`
// with no constant term — used by the resolver to recognize a bare
// assignment target.
func (e Expr) AsSingleVar() (Var, bool) {
	if !e.constant.IsZero() || len(e.coeffs) != 1 {
		return 0, false
	}
	for v, c := range e.coeffs {
		if c.Eq(bigint.FromInt64(1)) {
			return v, true
		}
	}
	return 0, false
}

func (e Expr) withCoeff(v Var, c bigint.Int) Expr {
	r := e.clone()
	if c.IsZero() {
		if r.coeffs != nil {
			delete(r.coeffs, v)
		}
		return r
	}
	if r.coeffs == nil {
		r.coeffs = make(map[Var]bigint.Int, 1)
	}
	r.coeffs[v] = c
	return r
}

// AddVar adds coeff*v to the expression.
func (e Expr) AddVar(v Var, coeff bigint.Int) Expr {
	return e.withCoeff(v, e.Coefficient(v).Add(coeff))
}

// AddConst adds a constant.
func (e Expr) AddConst(c bigint.Int) Expr {
	r := e.clone()
	r.constant = r.constant.Add(c)
	return r
}

// Add returns e + other.
func (e Expr) Add(other Expr) Expr {
	r := e.clone()
	r.constant = r.constant.Add(other.constant)
	for v, c := range other.coeffs {
		r = r.withCoeff(v, r.Coefficient(v).Add(c))
	}
	return r
}

// Sub returns e - other.
func (e Expr) Sub(other Expr) Expr { return e.Add(other.Neg()) }

// Neg returns -e.
func (e Expr) Neg() Expr {
	r := Expr{constant: e.constant.Neg()}
	if len(e.coeffs) > 0 {
		r.coeffs = make(map[Var]bigint.Int, len(e.coeffs))
		for v, c := range e.coeffs {
			r.coeffs[v] = c.Neg()
		}
	}
	return r
}

// ScalarMul returns k*e.
func (e Expr) ScalarMul(k bigint.Int) Expr {
	if k.IsZero() {
		return NewExpr(bigint.Zero())
	}
	r := Expr{constant: e.constant.Mul(k)}
	if len(e.coeffs) > 0 {
		r.coeffs = make(map[Var]bigint.Int, len(e.coeffs))
		for v, c := range e.coeffs {
			r.coeffs[v] = c.Mul(k)
		}
	}
	return r
}

// Equal is structural equality (same variables, same coefficients,
// same constant).
func (e Expr) Equal(other Expr) bool {
	if !e.constant.Eq(other.constant) || len(e.coeffs) != len(other.coeffs) {
		return false
	}
	for v, c := range e.coeffs {
		oc, ok := other.coeffs[v]
		if !ok || !oc.Eq(c) {
			return false
		}
	}
	return true
}

func (e Expr) String() string {
	if e.IsConstant() {
		return e.constant.String()
	}
	var sb strings.Builder
	first := true
	for _, v := range e.Vars() {
		c := e.coeffs[v]
		if !first {
			if c.Sign() >= 0 {
				sb.WriteString(" + ")
			} else {
				sb.WriteString(" - ")
			}
		} else if c.Sign() < 0 {
			sb.WriteString("-")
		}
		abs := c.Abs()
		if !abs.Eq(bigint.FromInt64(1)) {
			sb.WriteString(abs.String())
			sb.WriteString("*")
		}
		fmt.Fprintf(&sb, "v%d", v)
		first = false
	}
	if !e.constant.IsZero() {
		if e.constant.Sign() >= 0 {
			sb.WriteString(" + ")
		} else {
			sb.WriteString(" - ")
		}
		sb.WriteString(e.constant.Abs().String())
	}
	return sb.String()
}

// Kind is the relation a Constraint asserts against zero.
type Kind int

const (
	Eq Kind = iota // expr == 0
	Ne             // expr != 0
	Le             // expr <= 0
)

func (k Kind) String() string {
	switch k {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Le:
		return "<="
	default:
		return "?"
	}
}

// Constraint asserts Expr <op> 0.
type Constraint struct {
	Expr Expr
	Kind Kind
}

// NewConstraint builds `expr <op> 0` directly.
func NewConstraint(e Expr, k Kind) Constraint { return Constraint{Expr: e, Kind: k} }

// LE builds `lhs <= rhs` as `(lhs - rhs) <= 0`.
func LE(lhs, rhs Expr) Constraint { return Constraint{Expr: lhs.Sub(rhs), Kind: Le} }

// GE builds `lhs >= rhs` as `(rhs - lhs) <= 0`.
func GE(lhs, rhs Expr) Constraint { return Constraint{Expr: rhs.Sub(lhs), Kind: Le} }

// EQ builds `lhs == rhs`.
func EQ(lhs, rhs Expr) Constraint { return Constraint{Expr: lhs.Sub(rhs), Kind: Eq} }

// NE builds `lhs != rhs`.
func NE(lhs, rhs Expr) Constraint { return Constraint{Expr: lhs.Sub(rhs), Kind: Ne} }

// IsTautology reports whether the constraint is a constant expression
// that already satisfies its relation.
func (c Constraint) IsTautology() bool {
	if !c.Expr.IsConstant() {
		return false
	}
	return c.holds(c.Expr.Constant())
}

// IsContradiction reports whether the constraint is a constant
// expression that violates its relation.
func (c Constraint) IsContradiction() bool {
	if !c.Expr.IsConstant() {
		return false
	}
	return !c.holds(c.Expr.Constant())
}

func (c Constraint) holds(v bigint.Int) bool {
	switch c.Kind {
	case Eq:
		return v.IsZero()
	case Ne:
		return !v.IsZero()
	case Le:
		return v.Sign() <= 0
	default:
		panic("linear: invalid constraint kind")
	}
}

// Negate returns the logical complement of the constraint (used for
// the "false" branch of a filtered condition). Le's complement is
// built here as `expr >= 1` i.e. `-expr + 1 <= 0`, which is exact
// over integers.
func (c Constraint) Negate() Constraint {
	switch c.Kind {
	case Eq:
		return Constraint{Expr: c.Expr, Kind: Ne}
	case Ne:
		return Constraint{Expr: c.Expr, Kind: Eq}
	case Le:
		// not(expr <= 0) == (expr >= 1) == (-expr <= -1) == (-expr + 1) <= 0
		return Constraint{Expr: c.Expr.Neg().AddConst(bigint.FromInt64(1)), Kind: Le}
	default:
		panic("linear: invalid constraint kind")
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s 0", c.Expr.String(), c.Kind.String())
}

func (c Constraint) Equal(other Constraint) bool {
	return c.Kind == other.Kind && c.Expr.Equal(other.Expr)
}

// System is an ordered sequence of linear constraints.
type System struct {
	cs []Constraint
}

func NewSystem(cs ...Constraint) System { return System{cs: append([]Constraint(nil), cs...)} }

func (s System) Constraints() []Constraint { return s.cs }
func (s System) Len() int                  { return len(s.cs) }

// Add appends a constraint, returning a new system (systems are
// treated as persistent value types by the program-state layer).
func (s System) Add(c Constraint) System {
	return System{cs: append(append([]Constraint(nil), s.cs...), c)}
}

// Merge is set union (structural dedup) of two systems; the result
// asserts every constraint of both, so it admits no more values than
// either input. Control-flow joins combine systems with Retain instead.
func (s System) Merge(other System) System {
	out := append([]Constraint(nil), s.cs...)
	for _, oc := range other.cs {
		found := false
		for _, c := range out {
			if c.Equal(oc) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, oc)
		}
	}
	return System{cs: out}
}

// Retain is set intersection — used to combine constraint systems at
// a join/meet point conservatively (only constraints both sides agree
// on survive).
func (s System) Retain(other System) System {
	var out []Constraint
	for _, c := range s.cs {
		for _, oc := range other.cs {
			if c.Equal(oc) {
				out = append(out, c)
				break
			}
		}
	}
	return System{cs: out}
}

// Equal is order-independent structural equality.
func (s System) Equal(other System) bool {
	if len(s.cs) != len(other.cs) {
		return false
	}
	used := make([]bool, len(other.cs))
	for _, c := range s.cs {
		found := false
		for i, oc := range other.cs {
			if !used[i] && c.Equal(oc) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Hash is a folding-set-compatible, order-independent hash.
func (s System) Hash() uint64 {
	var h uint64
	for _, c := range s.cs {
		ch := hashString(c.String())
		h ^= ch + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	return h
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
