package optimizations

import "math"

// SGDUpdateInPlace does row -= rate * grad.
func SGDUpdateInPlace(row, grad []float64, rate float64) {
	if len(row) != len(grad) {
		panic("sgdUpdateInPlace: grad shape mismatch")
	}
	for i, g := range grad {
		row[i] -= rate * g
	}
}

// AdagradUpdateInPlace scales rate by 1/sqrt(acc[idx]+eps) after adding
// the mean squared gradient, then applies the SGD step.
// sqNorm is the squared norm of the whole gradient; acc holds one slot per row.
func AdagradUpdateInPlace(row, grad []float64, rate, sqNorm float64, acc []float64, idx int32) {
	if len(row) != len(grad) {
		panic("adagradUpdateInPlace: grad shape mismatch")
	}
	acc[idx] += sqNorm / float64(len(row))
	SGDUpdateInPlace(row, grad, rate/math.Sqrt(acc[idx]+1e-6))
}
