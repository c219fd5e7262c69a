package components

import (
	"math"
	"testing"
)

func TestKeyframesSample(t *testing.T) {
	k := Keyframes{{T: 0, X: 0, Y: 0}, {T: 10, X: 100, Y: 0}}

	tests := []struct {
		t    float64
		x, y float64
	}{
		{5, 50, 0},
		{-1, 0, 0},
		{20, 100, 0},
		{0, 0, 0},
		{10, 100, 0},
		{2.5, 25, 0},
	}
	for _, tc := range tests {
		p := k.Sample(tc.t)
		if math.Abs(p.X-tc.x) > 1e-9 || math.Abs(p.Y-tc.y) > 1e-9 {
			t.Errorf("Sample(%g) = (%g, %g), want (%g, %g)", tc.t, p.X, p.Y, tc.x, tc.y)
		}
	}
}

func TestKeyframesSampleMultiSegment(t *testing.T) {
	k := Keyframes{
		{T: 0, X: 0, Y: 0},
		{T: 1, X: 10, Y: 0},
		{T: 3, X: 10, Y: 20},
		{T: 4, X: 0, Y: 20},
	}
	p := k.Sample(2)
	if p.X != 10 || p.Y != 10 {
		t.Errorf("Sample(2) = %v, want (10, 10)", p)
	}
	p = k.Sample(3.5)
	if p.X != 5 || p.Y != 20 {
		t.Errorf("Sample(3.5) = %v, want (5, 20)", p)
	}
	// Exactly on an interior keyframe.
	p = k.Sample(1)
	if p.X != 10 || p.Y != 0 {
		t.Errorf("Sample(1) = %v, want (10, 0)", p)
	}
}

func TestKeyframesCovers(t *testing.T) {
	k := Keyframes{{T: 2, X: 1}, {T: 6, X: 2}}
	for _, tc := range []struct {
		t    float64
		want bool
	}{{1.9, false}, {2, true}, {4, true}, {6, true}, {6.1, false}} {
		if got := k.Covers(tc.t); got != tc.want {
			t.Errorf("Covers(%g) = %v, want %v", tc.t, got, tc.want)
		}
	}
	if (Keyframes{}).Covers(0) {
		t.Error("empty keyframes should cover nothing")
	}
}
