package optimizations

import (
	"math"
	"testing"
)

func TestSGDUpdate(t *testing.T) {
	row := []float64{1, 1}
	SGDUpdateInPlace(row, []float64{2, -4}, 0.5)
	if row[0] != 0 || row[1] != 3 {
		t.Fatalf("sgd mismatch: got=%v want=[0 3]", row)
	}
}

func TestAdagradShrinksSteps(t *testing.T) {
	acc := make([]float64, 2)
	row := []float64{0, 0}
	grad := []float64{1, 1}
	AdagradUpdateInPlace(row, grad, 1, 2, acc, 1)
	if acc[1] != 1 || acc[0] != 0 {
		t.Fatalf("acc mismatch: got=%v want=[0 1]", acc)
	}
	first := -row[0]
	if math.Abs(first-1/math.Sqrt(1+1e-6)) > 1e-12 {
		t.Fatalf("first step mismatch: got=%v", first)
	}
	before := row[0]
	AdagradUpdateInPlace(row, grad, 1, 2, acc, 1)
	second := before - row[0]
	if second >= first {
		t.Fatalf("steps should shrink: first=%v second=%v", first, second)
	}
}

func TestShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	SGDUpdateInPlace([]float64{1}, []float64{1, 2}, 1)
}
