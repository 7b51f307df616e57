//go:build accelerate

package main

// #cgo LDFLAGS: -framework Accelerate
import "C"

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with -tags accelerate routes gonum's float64 BLAS through
// Accelerate's cblas. The dot-similarity kNN scan is one Dgemv per query
// and is the main consumer.
func init() {
	blas64.Use(netlib.Implementation{})
}
