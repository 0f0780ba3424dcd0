// Package domain defines the uniform abstract-domain interface (spec
// §3.7) and the concrete domains the engine ships: a separate
// (non-relational) interval domain, a discrete-set domain, a pointer-
// info domain, and a trivial demo domain used to exercise the
// DomId -> Domain map with more than one entry.
//
// Domains are mutable value holders: Join/Widen/Meet/Narrow mutate the
// receiver in place, matching spec §3.7's "join_with" naming. Program
// state enforces the "immutable from outside" half of spec §3.9(iv) by
// always cloning before mutating (clone-then-replace).
package domain

import (
	"knight/internal/bigint"
	"knight/internal/interval"
	"knight/internal/linear"
)

// Id identifies one domain kind within a ProgramState's domain-value
// map (spec §9 "a DomId -> ErasedDomain map inside ProgramState"). The
// set of domains in a given build is closed and small, so a sum-type
// of small integer ids is used rather than open-ended registration.
type Id int

const (
	IntervalID Id = iota
	DiscreteSetID
	PointerInfoID
	DemoID
)

// New builds the top value of the named domain kind, used wherever an
// analysis first touches a DomId that the state has not initialized
// yet (spec §9's "DomId -> ErasedDomain map").
func New(id Id) Domain {
	switch id {
	case IntervalID:
		return NewIntervalDomain()
	case DiscreteSetID:
		d := NewDiscreteSet()
		d.SetToTop()
		return d
	case PointerInfoID:
		return NewPointerInfo()
	case DemoID:
		d := NewDemo()
		d.SetToTop()
		return d
	default:
		panic("domain: unknown domain id")
	}
}

func (d Id) String() string {
	switch d {
	case IntervalID:
		return "interval"
	case DiscreteSetID:
		return "discrete-set"
	case PointerInfoID:
		return "pointer-info"
	case DemoID:
		return "demo"
	default:
		return "?"
	}
}

// Domain is the operation set every abstract domain exposes (spec
// §3.7).
type Domain interface {
	IsTop() bool
	IsBottom() bool
	SetToTop()
	SetToBottom()
	JoinWith(other Domain)
	WidenWith(other Domain)
	MeetWith(other Domain)
	NarrowWith(other Domain)
	Leq(other Domain) bool
	Equals(other Domain) bool
	Normalize()
	Clone() Domain
	Dump() string
}

// Numerical extends Domain with the operations numerical (variable-
// indexed) domains additionally expose (spec §3.7).
type Numerical interface {
	Domain

	WidenWithThreshold(other Domain, thresholds []bigint.Int)
	NarrowWithThreshold(other Domain, thresholds []bigint.Int)

	AssignVarNum(x linear.Var, n bigint.Int)
	AssignVarVar(x, y linear.Var)
	AssignVarLinearExpr(x linear.Var, e linear.Expr)
	AssignBinaryVarVar(x, y, z linear.Var, op BinOp)
	AssignBinaryVarNum(x, y linear.Var, op BinOp, n bigint.Int)
	AssignCast(x, y linear.Var, dstWidth uint, dstUnsigned bool)

	ApplyConstraint(c linear.Constraint)
	ApplyConstraintSystem(cs linear.System)

	Project(x linear.Var) interval.Interval
	ToLinearConstraintSystem() linear.System
}

// BinOp is the subset of symbol.Op that a numerical domain's binary
// assignment accepts: any operator that is neither assignment nor
// comparison (spec §3.7).
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinShl
	BinShr
	BinAnd
	BinOr
	BinXor
)
