package utils

import (
	"math/rand/v2"
	"time"
)

// NewRand returns a generator for one goroutine. Generators with the same
// seed and different streams are independent; seed 0 seeds from the clock.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(NewSource(seed, stream))
}

func NewSource(seed, stream uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, stream)
}
