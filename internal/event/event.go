// Package event implements the typed assign/assumption event bus of
// spec §4.5: the symbol resolver dispatches a typed payload carrying a
// mutable state reference, and every registered listener (one per
// loaded numerical analysis) gets a chance to refine that state,
// grounded on knight's own LinearNumericalAssignEvent /
// LinearNumericalAssumptionEvent split (include/dfa/analysis/core/numerical_event.hpp)
// recast as two ordered listener lists instead of a variant-visitor.
package event

import (
	"knight/internal/bigint"
	"knight/internal/domain"
	"knight/internal/linear"
	"knight/internal/state"
	"knight/internal/symbol"
)

// StateRef is the mutable state handle threaded through dispatch; a
// listener refines the analysis by replacing State with the result of
// one of its domain's mutating operations (Join/Meet/Assign...), the
// Go stand-in for the original's `ProgramStateRef&` out-parameter.
type StateRef struct {
	State *state.State
}

// AssignKind distinguishes the linear numerical assign event variants
// of spec §4.5.
type AssignKind int

const (
	ZVarAssignZVar AssignKind = iota
	ZVarAssignZNum
	ZVarAssignZLinearExpr
	ZVarAssignBinaryVarVar
	ZVarAssignBinaryVarNum
	ZVarAssignZCast
)

func (k AssignKind) String() string {
	switch k {
	case ZVarAssignZVar:
		return "ZVarAssignZVar"
	case ZVarAssignZNum:
		return "ZVarAssignZNum"
	case ZVarAssignZLinearExpr:
		return "ZVarAssignZLinearExpr"
	case ZVarAssignBinaryVarVar:
		return "ZVarAssignBinaryVarVar"
	case ZVarAssignBinaryVarNum:
		return "ZVarAssignBinaryVarNum"
	case ZVarAssignZCast:
		return "ZVarAssignZCast"
	default:
		return "?"
	}
}

// Assign is the payload of a linear numerical assign event; only the
// fields relevant to Kind are populated, mirroring the union-by-
// convention the original's variant encoded.
type Assign struct {
	Kind AssignKind

	X, Y, Z linear.Var
	Num     bigint.Int
	Expr    linear.Expr
	Op      domain.BinOp

	DstWidth    uint
	DstUnsigned bool
}

// AssumptionKind distinguishes the linear numerical assumption event
// variants of spec §4.5.
type AssumptionKind int

const (
	PredicateZVarZNum AssumptionKind = iota
	PredicateZVarZVar
	GeneralLinearConstraint
)

func (k AssumptionKind) String() string {
	switch k {
	case PredicateZVarZNum:
		return "PredicateZVarZNum"
	case PredicateZVarZVar:
		return "PredicateZVarZVar"
	case GeneralLinearConstraint:
		return "GeneralLinearConstraint"
	default:
		return "?"
	}
}

// Assumption is the payload of a linear numerical assumption event.
type Assumption struct {
	Kind AssumptionKind

	Op   symbol.Op
	X, Y linear.Var
	Num  bigint.Int

	Constraint linear.Constraint
}

// AssignListener handles one ref's worth of an assign event, refining
// ref.State in place.
type AssignListener func(ref *StateRef, a Assign)

// AssumptionListener handles an assumption event.
type AssumptionListener func(ref *StateRef, a Assumption)

// Bus is the per-analysis-run dispatcher: listeners register once
// (typically one per loaded numerical analysis/domain) and are invoked
// in registration order for every event the resolver emits (spec
// §4.5's "dispatch is deterministic in registration order").
type Bus struct {
	assignListeners     []AssignListener
	assumptionListeners []AssumptionListener
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{} }

// RegisterAssign appends l to the assign-dispatch order. Must not be
// called while a dispatch is in progress.
func (b *Bus) RegisterAssign(l AssignListener) {
	b.assignListeners = append(b.assignListeners, l)
}

// RegisterAssumption appends l to the assumption-dispatch order.
func (b *Bus) RegisterAssumption(l AssumptionListener) {
	b.assumptionListeners = append(b.assumptionListeners, l)
}

// DispatchAssign calls every registered assign listener in order.
// Listeners must not register or unregister listeners during dispatch;
// the bus dispatches over the slice as it stood when dispatch began,
// so self-removal would silently have no effect on the current round
// rather than the sound immediate-stop a caller might expect.
func (b *Bus) DispatchAssign(ref *StateRef, a Assign) {
	listeners := b.assignListeners
	for _, l := range listeners {
		l(ref, a)
	}
}

// DispatchAssumption calls every registered assumption listener in
// order.
func (b *Bus) DispatchAssumption(ref *StateRef, a Assumption) {
	listeners := b.assumptionListeners
	for _, l := range listeners {
		l(ref, a)
	}
}

// RegisterNumericalDomain wires the standard assign/assumption
// semantics for the numerical domain named id onto bus: every dispatch
// replays as the matching domain.Numerical mutator against that id's
// current value in ref.State, lazily initializing it to top on first
// touch. This is the Go counterpart of knight's NumericalAnalysis,
// which implements the event-visitor interface once per loaded domain
// rather than special-casing each domain at the resolver call site.
func RegisterNumericalDomain(bus *Bus, id domain.Id) {
	bus.RegisterAssign(func(ref *StateRef, a Assign) {
		nd := numericalDomain(ref, id)
		if nd == nil {
			return
		}
		switch a.Kind {
		case ZVarAssignZVar:
			nd.AssignVarVar(a.X, a.Y)
		case ZVarAssignZNum:
			nd.AssignVarNum(a.X, a.Num)
		case ZVarAssignZLinearExpr:
			nd.AssignVarLinearExpr(a.X, a.Expr)
		case ZVarAssignBinaryVarVar:
			nd.AssignBinaryVarVar(a.X, a.Y, a.Z, a.Op)
		case ZVarAssignBinaryVarNum:
			nd.AssignBinaryVarNum(a.X, a.Y, a.Op, a.Num)
		case ZVarAssignZCast:
			nd.AssignCast(a.X, a.Y, a.DstWidth, a.DstUnsigned)
		}
		ref.State = ref.State.WithDomain(id, nd)
	})
	bus.RegisterAssumption(func(ref *StateRef, a Assumption) {
		nd := numericalDomain(ref, id)
		if nd == nil {
			return
		}
		nd.ApplyConstraint(a.Constraint)
		ref.State = ref.State.WithDomain(id, nd)
	})
}

func numericalDomain(ref *StateRef, id domain.Id) domain.Numerical {
	var d domain.Domain
	if existing, ok := ref.State.Domain(id); ok {
		d = existing.Clone()
	} else {
		d = domain.New(id)
	}
	nd, ok := d.(domain.Numerical)
	if !ok {
		return nil
	}
	return nd
}
