package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Row-vector helpers used on the hot path. Vectors are plain []float64 views
// into gonum storage so updates land in the embedding table directly.

const normEpsilon = 1e-10

func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("Dot: length mismatch")
	}
	return floats.Dot(a, b)
}

// Norm2 is the L2 norm floored at a small epsilon so it can be divided by.
func Norm2(a []float64) float64 {
	return math.Max(floats.Norm(a, 2), normEpsilon)
}

// Cosine returns 0 when either operand has zero norm.
func Cosine(a, b []float64) float64 {
	normA := Dot(a, a)
	normB := Dot(b, b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / math.Sqrt(normA*normB)
}

// SoftmaxInPlace turns logits into probabilities, subtracting the max for stability.
func SoftmaxInPlace(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}
	mx := floats.Max(v)
	sum := 0.0
	for i := range v {
		v[i] = math.Exp(v[i] - mx)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
	return v
}

// CrossEntropyWithIndex returns -log p[gold] and the softmax of logits
// (logits are overwritten).
func CrossEntropyWithIndex(logits []float64, gold int) (float64, []float64) {
	if gold < 0 || gold >= len(logits) {
		panic("CrossEntropyWithIndex: gold index out of range")
	}
	prob := SoftmaxInPlace(logits)
	return -math.Log(math.Max(prob[gold], 1e-12)), prob
}

// AllFinite reports whether v has no NaN or Inf entries.
func AllFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
