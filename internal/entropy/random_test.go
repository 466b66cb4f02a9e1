package entropy

import "testing"

type fixed float64

func (f fixed) Float() float64 { return float64(f) }

func TestChance(t *testing.T) {
	tests := []struct {
		src  Source
		p    float64
		want bool
	}{
		{fixed(0.05), 0.1, true},
		{fixed(0.1), 0.1, false},
		{fixed(0.99), 0, false},
		{fixed(0), 0, false},
		{fixed(0.99), 1, true},
	}
	for _, tt := range tests {
		if got := Chance(tt.src, tt.p); got != tt.want {
			t.Errorf("Chance(%v, %v) = %v, want %v", tt.src, tt.p, got, tt.want)
		}
	}
}

func TestPickStaysInRange(t *testing.T) {
	if got := Pick(fixed(0.999999999), 11); got != 10 {
		t.Fatalf("Pick near 1 = %d, want 10", got)
	}
	if got := Pick(fixed(0), 11); got != 0 {
		t.Fatalf("Pick(0) = %d", got)
	}
	for i := 0; i < 1000; i++ {
		if got := Pick(nil, 3); got < 0 || got > 2 {
			t.Fatalf("crypto Pick = %d", got)
		}
	}
}

func TestSeededIsReproducible(t *testing.T) {
	a, b := NewSeeded(9), NewSeeded(9)
	for i := 0; i < 100; i++ {
		x, y := a.Float(), b.Float()
		if x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("draw %d out of range: %v", i, x)
		}
	}
	var c Crypto
	if f := c.Float(); f < 0 || f >= 1 {
		t.Fatalf("crypto float out of range: %v", f)
	}
}
