package schedule

import "math/rand/v2"

// Rand is the randomness used by the generator and the repairer.
type Rand interface {
	IntN(n int) int
}

// DefaultRand is backed by the runtime-seeded global source.
func DefaultRand() Rand { return globalRand{} }

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// SeededRand is reproducible; tests use it.
func SeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
