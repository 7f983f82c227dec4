package battle

import "math/rand"

// RNG is the per-battle deterministic source (spec.md §5: "same seed +
// same input choices = same log"). It wraps math/rand's algorithmic
// generator rather than a crypto source, since gameplay randomness needs
// to be reproducible from a seed, not unpredictable.
type RNG struct {
	src *rand.Rand
}

// NewRNG seeds a deterministic generator.
func NewRNG(seed int64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed))}
}

// Chance reports a true with probability num/den.
func (r *RNG) Chance(num, den int64) bool {
	if den <= 0 {
		return false
	}
	return r.src.Int63n(den) < num
}

// Range returns a uniform integer in [lo, hi].
func (r *RNG) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.src.Intn(hi-lo+1)
}

// Float01 returns a uniform float64 in [0, 1).
func (r *RNG) Float01() float64 { return r.src.Float64() }

// ShuffleInts permutes n items in place through swap (used for speed-tie
// resolution).
func (r *RNG) ShuffleInts(n int, swap func(i, j int)) { r.src.Shuffle(n, swap) }
