package event

import (
	"testing"

	"knight/internal/bigint"
	"knight/internal/domain"
	"knight/internal/state"
)

func emptyState() *state.State {
	return state.NewManager().Empty()
}

func TestDispatchAssignCallsListenersInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.RegisterAssign(func(ref *StateRef, a Assign) { order = append(order, 1) })
	b.RegisterAssign(func(ref *StateRef, a Assign) { order = append(order, 2) })
	b.RegisterAssign(func(ref *StateRef, a Assign) { order = append(order, 3) })

	ref := &StateRef{State: emptyState()}
	b.DispatchAssign(ref, Assign{Kind: ZVarAssignZNum, X: 1, Num: bigint.FromInt64(5)})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected listeners invoked in registration order, got %v", order)
	}
}

func TestDispatchAssignLetsListenerRefineState(t *testing.T) {
	b := NewBus()
	b.RegisterAssign(func(ref *StateRef, a Assign) {
		if a.Kind != ZVarAssignZNum {
			return
		}
		d := domain.NewIntervalDomain()
		d.AssignVarNum(a.X, a.Num)
		ref.State = ref.State.WithDomain(domain.IntervalID, d)
	})

	ref := &StateRef{State: emptyState()}
	b.DispatchAssign(ref, Assign{Kind: ZVarAssignZNum, X: 1, Num: bigint.FromInt64(7)})

	d, ok := ref.State.Domain(domain.IntervalID)
	if !ok {
		t.Fatal("expected the listener's domain update to be visible on the ref")
	}
	got := d.(domain.Numerical).Project(1)
	want := domain.NewIntervalDomain()
	want.AssignVarNum(1, bigint.FromInt64(7))
	if !got.Equal(want.Project(1)) {
		t.Errorf("expected var 1 to be bound to 7, got %v", got)
	}
}

func TestDispatchAssumptionCallsListenersInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []string
	b.RegisterAssumption(func(ref *StateRef, a Assumption) { order = append(order, "first") })
	b.RegisterAssumption(func(ref *StateRef, a Assumption) { order = append(order, "second") })

	ref := &StateRef{State: emptyState()}
	b.DispatchAssumption(ref, Assumption{Kind: PredicateZVarZNum, X: 1, Num: bigint.FromInt64(0)})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected assumption listeners in registration order, got %v", order)
	}
}

func TestDispatchWithNoListenersIsANoop(t *testing.T) {
	b := NewBus()
	ref := &StateRef{State: emptyState()}
	b.DispatchAssign(ref, Assign{Kind: ZVarAssignZNum})
	b.DispatchAssumption(ref, Assumption{Kind: PredicateZVarZNum})
	if ref.State == nil {
		t.Error("dispatch with no listeners should leave ref.State untouched, not nil it out")
	}
}

func TestAssignKindAndAssumptionKindString(t *testing.T) {
	cases := []struct {
		k   AssignKind
		exp string
	}{
		{ZVarAssignZVar, "ZVarAssignZVar"},
		{ZVarAssignZCast, "ZVarAssignZCast"},
		{AssignKind(99), "?"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.exp {
			t.Errorf("AssignKind(%d).String() = %q, want %q", c.k, got, c.exp)
		}
	}

	if GeneralLinearConstraint.String() != "GeneralLinearConstraint" {
		t.Errorf("unexpected AssumptionKind string: %s", GeneralLinearConstraint.String())
	}
}
