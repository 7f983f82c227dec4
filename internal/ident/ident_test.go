package ident

import "testing"

func TestAllocatorNeverReusesHandles(t *testing.T) {
	a := NewAllocator()
	seen := map[Handle]bool{}
	for i := 0; i < 10; i++ {
		h := a.Next()
		if h == InvalidHandle {
			t.Fatalf("allocator issued the invalid handle at iteration %d", i)
		}
		if seen[h] {
			t.Fatalf("handle %v reused", h)
		}
		seen[h] = true
	}
}

func TestFractionArithmeticNormalizes(t *testing.T) {
	f := F(2, 4)
	if f.Num != 1 || f.Den != 2 {
		t.Fatalf("F(2,4) = %v, want 1/2", f)
	}
	sum := F(1, 3).Add(F(1, 6))
	if sum.Cmp(F(1, 2)) != 0 {
		t.Fatalf("1/3 + 1/6 = %v, want 1/2", sum)
	}
}

func TestFractionNegativeDenominatorNormalizes(t *testing.T) {
	f := F(1, -2)
	if f.Num != -1 || f.Den != 2 {
		t.Fatalf("F(1,-2) = %v, want -1/2", f)
	}
}

func TestFractionCmp(t *testing.T) {
	cases := []struct {
		a, b Fraction
		want int
	}{
		{F(1, 2), F(1, 3), 1},
		{F(1, 3), F(1, 2), -1},
		{F(2, 4), F(1, 2), 0},
	}
	for _, c := range cases {
		if got := c.a.Cmp(c.b); got != c.want {
			t.Errorf("%v.Cmp(%v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestFractionRoundUp(t *testing.T) {
	if got := F(1, 3).RoundUp(); got != 1 {
		t.Errorf("RoundUp(1/3) = %d, want 1", got)
	}
	if got := Whole(4).RoundUp(); got != 4 {
		t.Errorf("RoundUp(4) = %d, want 4", got)
	}
	// Any positive remainder rounds up: 199/200 is 1, not 0.
	almostFull := F(199, 200)
	if got := almostFull.RoundUp(); got != 1 {
		t.Errorf("RoundUp(199/200) = %d, want 1 (ceil, not round-to-full)", got)
	}
}

func TestFractionString(t *testing.T) {
	if Whole(3).String() != "3" {
		t.Errorf("Whole(3).String() = %q, want %q", Whole(3).String(), "3")
	}
	if F(1, 2).String() != "1/2" {
		t.Errorf("F(1,2).String() = %q, want %q", F(1, 2).String(), "1/2")
	}
}

func TestFractionZeroDenominatorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("F(1, 0) did not panic")
		}
	}()
	F(1, 0)
}

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 0}, {6, 6}, {7, 6}, {-6, -6}, {-7, -6}, {3, 3},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBoostTableSetReportsSaturation(t *testing.T) {
	b := BoostTable{}
	if sat := b.Set(Attack, 3); sat {
		t.Error("Set(Attack, 3) reported saturation, want false")
	}
	if b.Get(Attack) != 3 {
		t.Errorf("Get(Attack) = %d, want 3", b.Get(Attack))
	}
	if sat := b.Set(Attack, 9); !sat {
		t.Error("Set(Attack, 9) did not report saturation")
	}
	if b.Get(Attack) != 6 {
		t.Errorf("Get(Attack) after overflow = %d, want clamped to 6", b.Get(Attack))
	}
}

func TestBoostMultiplier(t *testing.T) {
	if got := BoostMultiplier(0); got.Cmp(Whole(1)) != 0 {
		t.Errorf("BoostMultiplier(0) = %v, want 1", got)
	}
	if got := BoostMultiplier(2); got.Cmp(F(4, 2)) != 0 {
		t.Errorf("BoostMultiplier(2) = %v, want 4/2", got)
	}
	if got := BoostMultiplier(-2); got.Cmp(F(2, 4)) != 0 {
		t.Errorf("BoostMultiplier(-2) = %v, want 2/4", got)
	}
	// Out-of-range stages clamp before computing the multiplier.
	if got := BoostMultiplier(20); got.Cmp(BoostMultiplier(6)) != 0 {
		t.Errorf("BoostMultiplier(20) should clamp to stage 6's multiplier")
	}
}

func TestStatString(t *testing.T) {
	if Speed.String() != "spe" {
		t.Errorf("Speed.String() = %q, want %q", Speed.String(), "spe")
	}
	if Stat(99).String() != "unknown" {
		t.Errorf("Stat(99).String() = %q, want %q", Stat(99).String(), "unknown")
	}
}

func TestTypeString(t *testing.T) {
	if Fire.String() != "fire" {
		t.Errorf("Fire.String() = %q, want %q", Fire.String(), "fire")
	}
	if Type(999).String() != "unknown" {
		t.Errorf("Type(999).String() = %q, want %q", Type(999).String(), "unknown")
	}
}

func TestNatureModifiers(t *testing.T) {
	boosted, hindered := Adamant.Modifiers()
	if boosted != Attack || hindered != SpAttack {
		t.Errorf("Adamant.Modifiers() = (%v, %v), want (Attack, SpAttack)", boosted, hindered)
	}
	boosted, hindered = Hardy.Modifiers()
	if boosted != Stat(-1) || hindered != Stat(-1) {
		t.Errorf("Hardy.Modifiers() = (%v, %v), want (-1, -1) for a neutral nature", boosted, hindered)
	}
}
