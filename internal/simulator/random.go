package simulator

import (
	"math"
	"math/rand/v2"
)

// Source yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic PCG source for the given seed.
func NewSource(seed int64) Source {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// NewRandomSource returns a PCG source seeded from the runtime's entropy.
func NewRandomSource() Source {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Uniform returns a float uniformly distributed in [a, b).
func Uniform(src Source, a, b float64) float64 {
	return a + src.Float64()*(b-a)
}

// Norm returns a standard normal deviate using the Box–Muller transform.
// Zero draws are discarded so the logarithm stays finite.
func Norm(src Source) float64 {
	var u, v float64
	for u == 0 {
		u = src.Float64()
	}
	for v == 0 {
		v = src.Float64()
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// chance reports true with probability p.
func chance(src Source, p float64) bool {
	return src.Float64() < p
}

// pick returns a uniform index in [0, n).
func pick(src Source, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
