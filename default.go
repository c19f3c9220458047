package optim

import (
	"math/rand"
	"time"
)

// Rng is the source of randomness for seeding, velocity updates and
// discrete resampling.  *math/rand.Rand satisfies it.
type Rng interface {
	Float64() float64
	Intn(n int) int
	Perm(n int) []int
}

// NewRng returns a generator seeded with seed.  A zero seed uses the current
// time.
func NewRng(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Uniform returns a value drawn uniformly from [low, up).
func Uniform(r Rng, low, up float64) float64 {
	return low + r.Float64()*(up-low)
}
