package bigint

import "testing"

func TestModEuclidean(t *testing.T) {
	cases := []struct{ n, d, want int64 }{
		{7, 3, 1},
		{-7, 3, 2},
		{7, -3, 1},
		{-7, -3, 2},
		{0, 5, 0},
	}
	for _, c := range cases {
		n, d := FromInt64(c.n), FromInt64(c.d)
		got := n.Mod(d)
		if got.Int64() != c.want {
			t.Errorf("Mod(%d,%d) = %v, want %d", c.n, c.d, got, c.want)
		}
		if got.Sign() < 0 {
			t.Errorf("Mod(%d,%d) = %v is negative", c.n, c.d, got)
		}
		absD := d.Abs()
		if !got.Lt(absD) {
			t.Errorf("Mod(%d,%d) = %v not < |d|=%v", c.n, c.d, got, absD)
		}
	}
}

func TestDivZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on division by zero")
		}
	}()
	FromInt64(1).Div(Zero())
}

func TestGcdLcm(t *testing.T) {
	a, b := FromInt64(12), FromInt64(18)
	if g := a.Gcd(b); g.Int64() != 6 {
		t.Errorf("Gcd(12,18) = %v, want 6", g)
	}
	if l := a.Lcm(b); l.Int64() != 36 {
		t.Errorf("Lcm(12,18) = %v, want 36", l)
	}
}

func TestExtGCD(t *testing.T) {
	a, b := FromInt64(35), FromInt64(15)
	g, x, y := a.ExtGCD(b)
	lhs := a.Mul(x).Add(b.Mul(y))
	if !lhs.Eq(g) {
		t.Errorf("a*x+b*y = %v, want gcd %v", lhs, g)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, base := range []int{2, 8, 10, 16, 36} {
		n := FromInt64(-123456789)
		s := n.Text(base)
		got, ok := FromString(s, base)
		if !ok {
			t.Fatalf("FromString(%q, %d) failed", s, base)
		}
		if !got.Eq(n) {
			t.Errorf("round-trip base %d: got %v want %v", base, got, n)
		}
	}
}

func TestHashStable(t *testing.T) {
	a := FromInt64(42)
	b := FromInt64(42)
	if a.Hash() != b.Hash() {
		t.Error("equal values hashed differently")
	}
}
