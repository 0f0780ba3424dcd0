package domain

import "testing"

func TestDemoJoinDisagreementGoesTop(t *testing.T) {
	yes := NewDemo()
	yes.Set(true)
	no := NewDemo()
	no.Set(false)

	yes.JoinWith(no)
	if !yes.IsTop() {
		t.Error("joining yes with no should produce top")
	}
}

func TestDemoJoinAgreementStays(t *testing.T) {
	a := NewDemo()
	a.Set(true)
	b := NewDemo()
	b.Set(true)
	a.JoinWith(b)
	if a.IsTop() || a.IsBottom() || a.Value() != true {
		t.Error("joining two equal facts should preserve the value")
	}
}

func TestDemoMeetDisagreementGoesBottom(t *testing.T) {
	yes := NewDemo()
	yes.Set(true)
	no := NewDemo()
	no.Set(false)
	yes.MeetWith(no)
	if !yes.IsBottom() {
		t.Error("meeting yes with no should produce bottom")
	}
}

func TestDemoLeqWithTopAndBottom(t *testing.T) {
	top := NewDemo()
	top.SetToTop()
	bottom := NewDemo()
	bottom.SetToBottom()
	yes := NewDemo()
	yes.Set(true)

	if !bottom.Leq(yes) {
		t.Error("bottom <= anything")
	}
	if !yes.Leq(top) {
		t.Error("anything <= top")
	}
	if top.Leq(yes) {
		t.Error("top should not be <= a concrete fact")
	}
}
