package domain

import "testing"

func TestDiscreteSetJoinMeet(t *testing.T) {
	a := NewDiscreteSet()
	a.Add("red")
	a.Add("green")
	b := NewDiscreteSet()
	b.Add("green")
	b.Add("blue")

	joined := a.Clone().(*DiscreteSet)
	joined.JoinWith(b)
	for _, want := range []string{"red", "green", "blue"} {
		if !joined.Contains(want) {
			t.Errorf("join missing %q", want)
		}
	}

	met := a.Clone().(*DiscreteSet)
	met.MeetWith(b)
	if !met.Contains("green") || met.Contains("red") || met.Contains("blue") {
		t.Errorf("expected meet == {green}, got %v", met.Elements())
	}
}

func TestDiscreteSetTopAbsorbs(t *testing.T) {
	top := NewDiscreteSet()
	top.SetToTop()
	a := NewDiscreteSet()
	a.Add("x")

	j := top.Clone().(*DiscreteSet)
	j.JoinWith(a)
	if !j.IsTop() {
		t.Error("join with top must stay top")
	}

	m := top.Clone().(*DiscreteSet)
	m.MeetWith(a)
	if !m.Contains("x") || m.IsTop() {
		t.Error("meet with top must reduce to the other operand")
	}
}

func TestDiscreteSetLeqAndEquals(t *testing.T) {
	small := NewDiscreteSet()
	small.Add("a")
	big := NewDiscreteSet()
	big.Add("a")
	big.Add("b")

	if !small.Leq(big) {
		t.Error("{a} should be <= {a,b}")
	}
	if big.Leq(small) {
		t.Error("{a,b} should not be <= {a}")
	}
	if small.Equals(big) {
		t.Error("{a} != {a,b}")
	}
}

func TestDiscreteSetBottomIsEmptyNonTop(t *testing.T) {
	empty := NewDiscreteSet()
	if !empty.IsBottom() {
		t.Error("an empty non-top set is bottom")
	}
	if empty.IsTop() {
		t.Error("empty set must not also be top")
	}
}
