package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float64{3, 4}
	NormalizeL2(x)
	if math.Abs(x[0]-0.6) > 1e-9 || math.Abs(x[1]-0.8) > 1e-9 {
		t.Errorf("got %v", x)
	}
	if n := L2Norm(x); math.Abs(n-1) > 1e-9 {
		t.Errorf("norm after normalize = %f", n)
	}

	zero := []float64{0, 0, 0}
	NormalizeL2(zero)
	for _, v := range zero {
		if v != 0 {
			t.Fatalf("zero vector changed: %v", zero)
		}
	}
}

func TestDot(t *testing.T) {
	if got := Dot([]float64{1, 2, 3}, []float64{4, 5, 6}); got != 32 {
		t.Errorf("Dot = %f", got)
	}
	if got := Dot([]float64{1, 2}, []float64{1}); got != 1 {
		t.Errorf("Dot with short slice = %f", got)
	}
}
