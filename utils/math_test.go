package utils

import (
	"math"
	"testing"
)

func TestCosineZeroNorm(t *testing.T) {
	if got := Cosine([]float64{0, 0}, []float64{1, 2}); got != 0 {
		t.Fatalf("cosine with zero vector mismatch: got=%v want=0", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{2, 0}); math.Abs(got-1) > 1e-12 {
		t.Fatalf("parallel cosine mismatch: got=%v want=1", got)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	v := SoftmaxInPlace([]float64{1000, 1001, 999})
	sum := 0.0
	for _, p := range v {
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Fatalf("bad probability %v", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("softmax sum mismatch: got=%v want=1", sum)
	}
	if !(v[1] > v[0] && v[0] > v[2]) {
		t.Fatalf("softmax order changed: %v", v)
	}
}

// Finite-difference check of d(-log p_gold)/d logit_i = p_i - 1{i==gold}.
func TestCrossEntropyGradient(t *testing.T) {
	logits := []float64{0.3, -1.2, 2.0, 0.5}
	gold := 2
	eps := 1e-6
	_, prob := CrossEntropyWithIndex(append([]float64(nil), logits...), gold)
	for i := range logits {
		plus := append([]float64(nil), logits...)
		minus := append([]float64(nil), logits...)
		plus[i] += eps
		minus[i] -= eps
		lp, _ := CrossEntropyWithIndex(plus, gold)
		lm, _ := CrossEntropyWithIndex(minus, gold)
		num := (lp - lm) / (2 * eps)
		ana := prob[i]
		if i == gold {
			ana -= 1
		}
		if math.Abs(num-ana) > 1e-5 {
			t.Fatalf("grad mismatch at %d: num=%.6g ana=%.6g", i, num, ana)
		}
	}
}

func TestAllFinite(t *testing.T) {
	if !AllFinite([]float64{1, -2, 0}) {
		t.Fatalf("finite vector reported non-finite")
	}
	if AllFinite([]float64{1, math.NaN()}) || AllFinite([]float64{math.Inf(-1)}) {
		t.Fatalf("non-finite vector reported finite")
	}
}

func TestTopKOrderAndTies(t *testing.T) {
	tk := NewTopK(3)
	scores := []float64{0.5, 0.9, 0.5, 0.1, 0.9, 0.7}
	for i, s := range scores {
		tk.Push(s, i)
	}
	got := tk.Sorted()
	want := []Scored{{0.9, 1}, {0.9, 4}, {0.7, 5}}
	if len(got) != len(want) {
		t.Fatalf("len mismatch: got=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topk mismatch at %d: got=%v want=%v", i, got[i], want[i])
		}
	}
}

func TestTopKLowerIDWinsTie(t *testing.T) {
	tk := NewTopK(1)
	tk.Push(1, 7)
	tk.Push(1, 3)
	tk.Push(1, 9)
	if got := tk.Sorted()[0].ID; got != 3 {
		t.Fatalf("tie-break mismatch: got=%d want=3", got)
	}
}
