package constraint

import (
	"testing"

	"knight/internal/bigint"
	"knight/internal/linear"
	"knight/internal/region"
	"knight/internal/symbol"
)

func TestAddLinearAndNonLinear(t *testing.T) {
	sm := symbol.NewManager()
	rm := region.NewManager()
	r := rm.Var(region.Decl{ID: 1, Name: "x", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	nonlin := sm.RegionSymVal(r, region.LocationContext{}, false)

	s := New()
	s = s.AddLinear(linear.LE(linear.NewVarExpr(1), linear.NewExpr(bigint.FromInt64(10))))
	s = s.AddNonLinear(nonlin)

	if s.Linear().Len() != 1 {
		t.Fatalf("expected 1 linear constraint, got %d", s.Linear().Len())
	}
	if len(s.NonLinear()) != 1 || s.NonLinear()[0] != nonlin {
		t.Fatalf("expected the non-linear fact to be tracked")
	}
}

func TestRetainKeepsOnlySharedFacts(t *testing.T) {
	sm := symbol.NewManager()
	rm := region.NewManager()
	r1 := rm.Var(region.Decl{ID: 1, Name: "a", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	r2 := rm.Var(region.Decl{ID: 2, Name: "b", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	f1 := sm.RegionSymVal(r1, region.LocationContext{}, false)
	f2 := sm.RegionSymVal(r2, region.LocationContext{}, false)

	c := linear.LE(linear.NewVarExpr(1), linear.NewExpr(bigint.FromInt64(5)))

	a := New().AddLinear(c).AddNonLinear(f1).AddNonLinear(f2)
	b := New().AddLinear(c).AddNonLinear(f1)

	r := a.Retain(b)
	if len(r.NonLinear()) != 1 || r.NonLinear()[0] != f1 {
		t.Errorf("expected retain to keep only the shared fact f1, got %v", r.NonLinear())
	}
	if r.Linear().Len() != 1 {
		t.Errorf("expected the shared linear constraint to survive retain")
	}
}

func TestMergeUnionsFacts(t *testing.T) {
	sm := symbol.NewManager()
	rm := region.NewManager()
	r1 := rm.Var(region.Decl{ID: 1, Name: "a", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	r2 := rm.Var(region.Decl{ID: 2, Name: "b", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	f1 := sm.RegionSymVal(r1, region.LocationContext{}, false)
	f2 := sm.RegionSymVal(r2, region.LocationContext{}, false)

	a := New().AddNonLinear(f1)
	b := New().AddNonLinear(f2)

	m := a.Merge(b)
	if len(m.NonLinear()) != 2 {
		t.Errorf("expected merge to union both facts, got %v", m.NonLinear())
	}
}

func TestEqualAndHashAreOrderIndependent(t *testing.T) {
	sm := symbol.NewManager()
	rm := region.NewManager()
	r1 := rm.Var(region.Decl{ID: 1, Name: "a", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	r2 := rm.Var(region.Decl{ID: 2, Name: "b", Type: region.ValueType{Name: "int", IsInt: true}}, nil)
	f1 := sm.RegionSymVal(r1, region.LocationContext{}, false)
	f2 := sm.RegionSymVal(r2, region.LocationContext{}, false)

	a := New().AddNonLinear(f1).AddNonLinear(f2)
	b := New().AddNonLinear(f2).AddNonLinear(f1)

	if !a.Equal(b) {
		t.Error("expected systems built in different insertion order to be equal")
	}
	if a.Hash() != b.Hash() {
		t.Error("expected hash to be order-independent")
	}
}
